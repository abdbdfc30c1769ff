package xai

import (
	"github.com/mou514/FinanceMate-sub000/internal/ailink/content"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
)

type chatCompletionResponse struct {
	Choices []choice `json:"choices"`
	Usage   *usage   `json:"usage,omitempty"`
}

type choice struct {
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type chatResponseMessage struct {
	Content string `json:"content"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func toDriverResponse(resp *chatCompletionResponse) (*driver.Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, &driver.DataError{Provider: string(driver.KindXAI), Reason: "empty response choices"}
	}

	out := &driver.Response{
		Content:      []content.ContentBlock{content.Text(resp.Choices[0].Message.Content)},
		FinishReason: resp.Choices[0].FinishReason,
	}
	if resp.Usage != nil {
		out.Usage = &driver.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}
