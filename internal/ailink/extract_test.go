package ailink

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/content"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
	"github.com/mou514/FinanceMate-sub000/internal/core"
)

type stubCompleter struct {
	reply string
	err   error
	reqs  []*driver.Request
	keys  []string
}

func (s *stubCompleter) Complete(_ context.Context, apiKey string, req *driver.Request) (*driver.Response, error) {
	s.reqs = append(s.reqs, req)
	s.keys = append(s.keys, apiKey)
	if s.err != nil {
		return nil, s.err
	}
	return &driver.Response{Content: []content.ContentBlock{content.Text(s.reply)}}, nil
}

type stubRecognizer struct {
	text string
	err  error
	keys []string
}

func (s *stubRecognizer) Recognize(_ context.Context, apiKey string, _ []byte, _ string) (string, error) {
	s.keys = append(s.keys, apiKey)
	return s.text, s.err
}

var categories = []string{"Groceries", "Food & Dining", "Other"}

func receiptRequest() driver.ReceiptRequest {
	return driver.ReceiptRequest{Image: []byte{0xFF, 0xD8, 0xFF}, MediaType: "image/jpeg", Categories: categories, Today: "2025-03-10"}
}

func TestVisionExtractorBuildsRequest(t *testing.T) {
	completer := &stubCompleter{reply: `{"merchant":"Corner Grocer","date":"2025-03-08","total":23.45,"category":"groceries"}`}
	ex := NewVisionExtractor(driver.KindOpenAI, "gpt-vision", completer, testPrompts(t))

	got, err := ex.ExtractReceipt(context.Background(), "key-1", receiptRequest())
	require.NoError(t, err)
	require.Equal(t, "Groceries", got.Draft.Category)
	require.Empty(t, got.Draft.LineItems)
	require.Equal(t, "gpt-vision", got.Model)

	require.Len(t, completer.reqs, 1)
	req := completer.reqs[0]
	require.Equal(t, "key-1", completer.keys[0])
	require.Equal(t, "gpt-vision", req.Model)
	require.Equal(t, "json_object", req.ResponseFormat.Type)
	require.Contains(t, req.Messages[0].Content[0].Text, "Groceries, Food & Dining, Other")
	require.True(t, req.Messages[1].Content[1].IsImage())
}

func TestVisionExtractorMissingCategoryIsDataError(t *testing.T) {
	completer := &stubCompleter{reply: `{"merchant":"Corner Grocer","date":"2025-03-08","total":23.45}`}
	ex := NewVisionExtractor(driver.KindAnthropic, "claude", completer, testPrompts(t))

	_, err := ex.ExtractReceipt(context.Background(), "k", receiptRequest())
	var dataErr *driver.DataError
	require.True(t, errors.As(err, &dataErr))
	require.Nil(t, completer.reqs[0].ResponseFormat)
}

func TestTwoStageExtractorShortCircuitsOnOCRFailure(t *testing.T) {
	recognizer := &stubRecognizer{err: &driver.OCRError{DataError: driver.DataError{Reason: "no text recognized"}}}
	completer := &stubCompleter{}
	ex := NewTwoStageExtractor(recognizer, "", "gpt-text", completer, testPrompts(t))

	_, err := ex.ExtractReceipt(context.Background(), "cred-1", receiptRequest())
	require.Error(t, err)
	require.Equal(t, core.StageOCR, driver.StageOf(err))
	require.Empty(t, completer.reqs)
	require.Equal(t, []string{"cred-1"}, recognizer.keys)
}

func TestTwoStageExtractorStructuresText(t *testing.T) {
	recognizer := &stubRecognizer{text: "CORNER GROCER\nTOTAL 23.45"}
	completer := &stubCompleter{reply: `{"merchant":"Corner Grocer","date":"2025-03-08","total":"23.45","category":"Snacks"}`}
	ex := NewTwoStageExtractor(recognizer, "ocr-key", "gpt-text", completer, testPrompts(t))

	got, err := ex.ExtractReceipt(context.Background(), "llm-key", receiptRequest())
	require.NoError(t, err)
	require.Equal(t, "Other", got.Draft.Category)
	require.Equal(t, []string{"ocr-key"}, recognizer.keys)
	require.Equal(t, []string{"llm-key"}, completer.keys)
	require.Contains(t, completer.reqs[0].Messages[1].Content[0].Text, "TOTAL 23.45")

	completer.reply = `{"merchant":"Corner Grocer"}`
	_, err = ex.ExtractReceipt(context.Background(), "llm-key", receiptRequest())
	require.Equal(t, core.StageStructure, driver.StageOf(err))
}

func TestVoiceExtractorThroughOpenAIClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "gpt-audio", payload["model"])

		reply := `{"receipts":[{"merchant":"Taxi","date":"2025-06-01","total":18,"category":"transportation"},{"merchant":"Lunch","date":"2025-06-01","total":12.5,"category":"Food & Dining"}]}`
		body, _ := json.Marshal(map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": reply}}}})
		_, _ = w.Write(body)
	}))
	defer server.Close()

	cfg := Config{
		AudioProvider: "voice",
		Providers: map[string]ProviderInstanceConfig{
			"voice": {Enabled: true, AIProvider: "openai", BaseURL: server.URL, Models: map[string]string{ModelAudio: "gpt-audio"},
				Credentials: []CredentialConfig{{Enabled: true, APIKey: "k"}}},
		},
	}
	provider, err := NewRegistry(cfg, testPrompts(t)).ResolveAudio("")
	require.NoError(t, err)

	drafts, err := provider.Extractor.ExtractAudio(context.Background(), provider.Credentials[0], driver.AudioRequest{
		Audio: []byte("RIFF"), Format: "wav", LocalDate: "2025-06-01", Currency: "USD",
		Categories: []string{"Transportation", "Food & Dining"},
	})
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	require.Equal(t, "Transportation", drafts[0].Category)
	require.True(t, strings.HasPrefix(drafts[1].Merchant, "Lunch"))
}

func TestCanonicalCategory(t *testing.T) {
	require.Equal(t, "Groceries", CanonicalCategory(" GROCERIES ", categories))
	require.Equal(t, "Other", CanonicalCategory("Pets", categories))
	require.Equal(t, "Pets", CanonicalCategory("Pets", []string{"Groceries"}))
	require.Equal(t, "Pets", CanonicalCategory("Pets", nil))
}
