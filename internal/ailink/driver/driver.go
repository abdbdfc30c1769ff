package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/content"
	"github.com/mou514/FinanceMate-sub000/internal/core"
)

// Kind names one of the supported extraction backends.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindXAI       Kind = "xai"
	KindAnthropic Kind = "anthropic"
	// KindOCR runs a dedicated OCR service first and structures the text
	// with an OpenAI-compatible chat model.
	KindOCR Kind = "ocr"
)

// Kinds lists every supported backend.
func Kinds() []Kind {
	return []Kind{KindOpenAI, KindXAI, KindAnthropic, KindOCR}
}

// ParseKind normalises a provider kind from configuration.
func ParseKind(value string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Kinds() {
		if kind == known {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown provider kind %q", value)
}

// Completer sends a single chat-style completion. The API key is supplied per
// call so one client can serve every credential of a provider.
type Completer interface {
	Complete(ctx context.Context, apiKey string, req *Request) (*Response, error)
}

// Extractor turns a receipt image into an expense draft.
type Extractor interface {
	Kind() Kind
	Model() string
	ExtractReceipt(ctx context.Context, apiKey string, req ReceiptRequest) (*Extraction, error)
}

// AudioExtractor turns a voice recording into zero or more expense drafts.
type AudioExtractor interface {
	Model() string
	ExtractAudio(ctx context.Context, apiKey string, req AudioRequest) ([]core.ExpenseDraft, error)
}

// ReceiptRequest carries a validated receipt image and the extraction vocabulary.
type ReceiptRequest struct {
	Image      []byte
	MediaType  string
	Categories []string
	// Today is the caller's civil date (YYYY-MM-DD), used to resolve partial dates.
	Today string
}

// AudioRequest carries a recording and the caller's local context.
type AudioRequest struct {
	Audio      []byte
	Format     string
	LocalDate  string
	Currency   string
	Categories []string
}

// Extraction is a successful receipt extraction.
type Extraction struct {
	Draft core.ExpenseDraft
	Model string
	Usage *Usage
	// Raw is the model reply the draft was decoded from.
	Raw string
}

// ResponseFormat specifies the expected response format.
type ResponseFormat struct {
	Type string `json:"type"` // "text", "json_object"
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model          string
	Messages       []content.Message
	ResponseFormat *ResponseFormat
	Temperature    *float64
	MaxTokens      *int
	PromptSlug     string
}

// Response is a provider-agnostic completion response.
type Response struct {
	Content      []content.ContentBlock
	FinishReason string
	Usage        *Usage
}

// Text concatenates the text blocks of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == content.ContentTypeText {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
