package ailink

import (
	"context"
	"fmt"
	"strings"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/content"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/prompt"
	"github.com/mou514/FinanceMate-sub000/internal/core"
)

// Recognizer is the text recognition stage of the OCR pipeline.
type Recognizer interface {
	Recognize(ctx context.Context, apiKey string, image []byte, mediaType string) (string, error)
}

// VisionExtractor reads receipts with a vision-capable chat model.
type VisionExtractor struct {
	kind      driver.Kind
	model     string
	completer driver.Completer
	prompts   prompt.Registry
}

// NewVisionExtractor builds an extractor for openai, xai or anthropic.
func NewVisionExtractor(kind driver.Kind, model string, completer driver.Completer, prompts prompt.Registry) *VisionExtractor {
	return &VisionExtractor{kind: kind, model: model, completer: completer, prompts: prompts}
}

func (e *VisionExtractor) Kind() driver.Kind { return e.kind }
func (e *VisionExtractor) Model() string     { return e.model }

// ExtractReceipt sends the image and instructions in one call.
func (e *VisionExtractor) ExtractReceipt(ctx context.Context, apiKey string, req driver.ReceiptRequest) (*driver.Extraction, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("image is required")
	}
	def, system, user, err := renderPrompt(e.prompts, prompt.SlugReceiptVision, map[string]string{
		"categories": strings.Join(req.Categories, ", "),
		"today":      req.Today,
	})
	if err != nil {
		return nil, err
	}

	resp, err := e.completer.Complete(ctx, apiKey, &driver.Request{
		Model: e.model,
		Messages: []content.Message{
			content.System(system),
			content.User(content.Text(user), content.Image(req.MediaType, req.Image)),
		},
		ResponseFormat: jsonFormat(e.kind),
		Temperature:    def.Temperature(),
		MaxTokens:      def.MaxTokens(),
		PromptSlug:     def.Config.Slug,
	})
	if err != nil {
		return nil, err
	}
	return buildExtraction(string(e.kind), e.model, resp, req.Categories)
}

// TwoStageExtractor recognises text with an OCR service, then structures it
// with a text-only chat model. An OCR failure stops before the second call.
type TwoStageExtractor struct {
	recognizer Recognizer
	ocrKey     string
	model      string
	completer  driver.Completer
	prompts    prompt.Registry
}

// NewTwoStageExtractor builds the OCR pipeline. When ocrKey is empty the
// credential being tried is also sent to the OCR service.
func NewTwoStageExtractor(recognizer Recognizer, ocrKey, model string, completer driver.Completer, prompts prompt.Registry) *TwoStageExtractor {
	return &TwoStageExtractor{recognizer: recognizer, ocrKey: strings.TrimSpace(ocrKey), model: model, completer: completer, prompts: prompts}
}

func (e *TwoStageExtractor) Kind() driver.Kind { return driver.KindOCR }
func (e *TwoStageExtractor) Model() string     { return e.model }

func (e *TwoStageExtractor) ExtractReceipt(ctx context.Context, apiKey string, req driver.ReceiptRequest) (*driver.Extraction, error) {
	ocrKey := e.ocrKey
	if ocrKey == "" {
		ocrKey = apiKey
	}
	text, err := e.recognizer.Recognize(ctx, ocrKey, req.Image, req.MediaType)
	if err != nil {
		return nil, &driver.StageError{Stage: core.StageOCR, Err: err}
	}

	def, system, user, err := renderPrompt(e.prompts, prompt.SlugReceiptStructure, map[string]string{
		"ocr_text":   text,
		"categories": strings.Join(req.Categories, ", "),
		"today":      req.Today,
	})
	if err != nil {
		return nil, err
	}

	resp, err := e.completer.Complete(ctx, apiKey, &driver.Request{
		Model:          e.model,
		Messages:       []content.Message{content.System(system), content.User(content.Text(user))},
		ResponseFormat: &driver.ResponseFormat{Type: "json_object"},
		Temperature:    def.Temperature(),
		MaxTokens:      def.MaxTokens(),
		PromptSlug:     def.Config.Slug,
	})
	if err != nil {
		return nil, &driver.StageError{Stage: core.StageStructure, Err: err}
	}
	extraction, err := buildExtraction(string(driver.KindOCR), e.model, resp, req.Categories)
	if err != nil {
		return nil, &driver.StageError{Stage: core.StageStructure, Err: err}
	}
	return extraction, nil
}

// VoiceExtractor turns a recording into drafts with an audio-input chat model.
type VoiceExtractor struct {
	model     string
	completer driver.Completer
	prompts   prompt.Registry
}

func NewVoiceExtractor(model string, completer driver.Completer, prompts prompt.Registry) *VoiceExtractor {
	return &VoiceExtractor{model: model, completer: completer, prompts: prompts}
}

func (e *VoiceExtractor) Model() string { return e.model }

// ExtractAudio returns zero or more drafts; a recording may mention several purchases.
func (e *VoiceExtractor) ExtractAudio(ctx context.Context, apiKey string, req driver.AudioRequest) ([]core.ExpenseDraft, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("audio is required")
	}
	def, system, user, err := renderPrompt(e.prompts, prompt.SlugVoiceExpenses, map[string]string{
		"local_date": req.LocalDate,
		"currency":   req.Currency,
		"categories": strings.Join(req.Categories, ", "),
	})
	if err != nil {
		return nil, err
	}

	resp, err := e.completer.Complete(ctx, apiKey, &driver.Request{
		Model: e.model,
		Messages: []content.Message{
			content.System(system),
			content.User(content.Text(user), content.Audio(req.Format, req.Audio)),
		},
		Temperature: def.Temperature(),
		MaxTokens:   def.MaxTokens(),
		PromptSlug:  def.Config.Slug,
	})
	if err != nil {
		return nil, err
	}

	drafts, err := driver.DecodeDrafts(string(driver.KindOpenAI), resp.Text())
	if err != nil {
		return nil, err
	}
	for i := range drafts {
		drafts[i].Category = CanonicalCategory(drafts[i].Category, req.Categories)
	}
	return drafts, nil
}

func renderPrompt(prompts prompt.Registry, slug string, vars map[string]string) (*prompt.Prompt, string, string, error) {
	if prompts == nil {
		return nil, "", "", fmt.Errorf("prompt registry not configured")
	}
	def, err := prompts.Get(slug)
	if err != nil {
		return nil, "", "", err
	}
	system, user, err := def.Render(vars)
	if err != nil {
		return nil, "", "", err
	}
	return def, system, user, nil
}

// jsonFormat requests JSON mode where the API has one.
func jsonFormat(kind driver.Kind) *driver.ResponseFormat {
	if kind == driver.KindAnthropic {
		return nil
	}
	return &driver.ResponseFormat{Type: "json_object"}
}

func buildExtraction(provider, model string, resp *driver.Response, categories []string) (*driver.Extraction, error) {
	text := resp.Text()
	draft, err := driver.DecodeDraft(provider, text)
	if err != nil {
		return nil, err
	}
	draft.Category = CanonicalCategory(draft.Category, categories)
	return &driver.Extraction{Draft: draft, Model: model, Usage: resp.Usage, Raw: text}, nil
}

// CanonicalCategory maps a model-chosen category onto the vocabulary
// spelling. Unknown categories become "Other" when the vocabulary has it.
func CanonicalCategory(category string, vocabulary []string) string {
	category = strings.TrimSpace(category)
	if len(vocabulary) == 0 {
		return category
	}
	other := ""
	for _, candidate := range vocabulary {
		if strings.EqualFold(candidate, category) {
			return candidate
		}
		if strings.EqualFold(candidate, "Other") {
			other = candidate
		}
	}
	if other != "" {
		return other
	}
	return category
}
