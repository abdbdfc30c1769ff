package anthropic

import (
	"fmt"
	"strings"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/content"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/encode"
)

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type message struct {
	Role    string      `json:"role"`
	Content []inputPart `json:"content"`
}

type inputPart struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

var supportedImageTypes = map[content.ContentType]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

func buildMessagesRequest(req *driver.Request) (*messagesRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}

	out := &messagesRequest{
		Model:       req.Model,
		MaxTokens:   defaultMaxTokens,
		Temperature: req.Temperature,
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		out.MaxTokens = *req.MaxTokens
	}

	var system []string
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			for _, block := range msg.Content {
				if block.Type == content.ContentTypeText {
					system = append(system, block.Text)
				}
			}
			continue
		}
		parts, err := convertContent(msg.Content)
		if err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, message{Role: msg.Role, Content: parts})
	}
	if len(out.Messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}
	out.System = strings.Join(system, "\n\n")

	// The messages API has no JSON mode; the system prompt carries the
	// instruction and decoding tolerates surrounding prose.
	return out, nil
}

func convertContent(blocks []content.ContentBlock) ([]inputPart, error) {
	parts := make([]inputPart, 0, len(blocks))
	for _, block := range blocks {
		switch {
		case block.Type == content.ContentTypeText:
			parts = append(parts, inputPart{Type: "text", Text: block.Text})
		case block.IsImage():
			mediaType := block.Type
			if mediaType == "image/jpg" {
				mediaType = "image/jpeg"
			}
			if !supportedImageTypes[mediaType] {
				return nil, fmt.Errorf("anthropic does not accept %s images", block.Type)
			}
			// Images go before the question in the same turn.
			parts = append([]inputPart{{
				Type:   "image",
				Source: &imageSource{Type: "base64", MediaType: string(mediaType), Data: encode.EncodeBase64String(block.Data)},
			}}, parts...)
		default:
			return nil, fmt.Errorf("unsupported content type: %s", block.Type)
		}
	}
	return parts, nil
}
