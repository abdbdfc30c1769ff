package openai

import (
	"fmt"
	"strings"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/content"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/encode"
)

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Modalities     []string        `json:"modalities,omitempty"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type contentPart struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	ImageURL   *imageURL   `json:"image_url,omitempty"`
	InputAudio *inputAudio `json:"input_audio,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type inputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

func buildChatRequest(req *driver.Request) (*chatCompletionRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}

	messages, hasAudio, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	payload := &chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if hasAudio {
		// Audio-input models reply in text only when asked explicitly, and
		// reject response_format.
		payload.Modalities = []string{"text"}
	} else if req.ResponseFormat != nil {
		payload.ResponseFormat = &responseFormat{Type: req.ResponseFormat.Type}
	}
	return payload, nil
}

func convertMessages(messages []content.Message) ([]chatMessage, bool, error) {
	if len(messages) == 0 {
		return nil, false, fmt.Errorf("messages are required")
	}
	hasAudio := false
	result := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		contentValue, audio, err := convertContent(msg.Content)
		if err != nil {
			return nil, false, err
		}
		hasAudio = hasAudio || audio
		result = append(result, chatMessage{Role: msg.Role, Content: contentValue})
	}
	return result, hasAudio, nil
}

func convertContent(blocks []content.ContentBlock) (interface{}, bool, error) {
	if len(blocks) == 0 {
		return "", false, nil
	}
	if len(blocks) == 1 && blocks[0].Type == content.ContentTypeText {
		return blocks[0].Text, false, nil
	}

	hasAudio := false
	converted := make([]contentPart, 0, len(blocks))
	for _, block := range blocks {
		switch {
		case block.Type == content.ContentTypeText || block.Type == content.ContentTypeJSON:
			converted = append(converted, contentPart{Type: "text", Text: block.Text})
		case block.IsImage():
			url := block.DataURL
			if url == "" {
				url = encode.DataURL(string(block.Type), block.Data)
			}
			converted = append(converted, contentPart{Type: "image_url", ImageURL: &imageURL{URL: url, Detail: "high"}})
		case block.IsAudio():
			hasAudio = true
			converted = append(converted, contentPart{
				Type:       "input_audio",
				InputAudio: &inputAudio{Data: encode.EncodeBase64String(block.Data), Format: audioFormat(block.Subtype())},
			})
		default:
			return nil, false, fmt.Errorf("unsupported content type: %s", block.Type)
		}
	}
	return converted, hasAudio, nil
}

// audioFormat maps media subtypes onto the two formats the API accepts.
func audioFormat(subtype string) string {
	switch strings.ToLower(subtype) {
	case "mpeg", "mp3", "mpga":
		return "mp3"
	default:
		return "wav"
	}
}
