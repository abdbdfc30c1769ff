package openai

import (
	"github.com/mou514/FinanceMate-sub000/internal/ailink/content"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
)

type chatCompletionResponse struct {
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   *usage   `json:"usage,omitempty"`
}

type choice struct {
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type chatResponseMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func toDriverResponse(resp *chatCompletionResponse) (*driver.Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, &driver.DataError{Provider: string(driver.KindOpenAI), Reason: "empty response choices"}
	}

	choice := resp.Choices[0]
	if choice.Message.Content == "" && choice.Message.Refusal != "" {
		return nil, &driver.DataError{Provider: string(driver.KindOpenAI), Reason: "model refused: " + choice.Message.Refusal}
	}

	response := &driver.Response{
		Content:      []content.ContentBlock{content.Text(choice.Message.Content)},
		FinishReason: choice.FinishReason,
	}
	if resp.Usage != nil {
		response.Usage = &driver.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return response, nil
}
