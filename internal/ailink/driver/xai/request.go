package xai

import (
	"fmt"
	"strings"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/content"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/encode"
)

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type contentBlock struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// supportedImageTypes lists what Grok vision accepts.
var supportedImageTypes = map[content.ContentType]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

func buildChatRequest(req *driver.Request) (*chatCompletionRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}

	messages := make([]chatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		value, err := convertContent(msg.Content)
		if err != nil {
			return nil, err
		}
		messages = append(messages, chatMessage{Role: msg.Role, Content: value})
	}

	payload := &chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.ResponseFormat != nil {
		payload.ResponseFormat = &responseFormat{Type: req.ResponseFormat.Type}
	}
	return payload, nil
}

func convertContent(blocks []content.ContentBlock) (any, error) {
	if len(blocks) == 1 && blocks[0].Type == content.ContentTypeText {
		return blocks[0].Text, nil
	}

	converted := make([]contentBlock, 0, len(blocks))
	for _, block := range blocks {
		switch {
		case block.Type == content.ContentTypeText:
			converted = append(converted, contentBlock{Type: "text", Text: block.Text})
		case block.IsImage():
			if !supportedImageTypes[block.Type] {
				return nil, fmt.Errorf("xai does not accept %s images", block.Type)
			}
			url := block.DataURL
			if url == "" {
				url = encode.DataURL(string(block.Type), block.Data)
			}
			converted = append(converted, contentBlock{Type: "image_url", ImageURL: &imageURL{URL: url, Detail: "high"}})
		default:
			return nil, fmt.Errorf("unsupported content type: %s", block.Type)
		}
	}
	return converted, nil
}
