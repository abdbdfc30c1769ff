package anthropic

import (
	"strings"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/content"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
)

type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func toDriverResponse(resp *messagesResponse) (*driver.Response, error) {
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, &driver.DataError{Provider: string(driver.KindAnthropic), Reason: "response has no text content"}
	}

	return &driver.Response{
		Content:      []content.ContentBlock{content.Text(text.String())},
		FinishReason: resp.StopReason,
		Usage: &driver.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}
