// Package ocr implements the text recognition stage of the two-stage
// receipt pipeline against an OCR.space-compatible endpoint.
package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/encode"
)

const (
	defaultBaseURL  = "https://api.ocr.space"
	defaultLanguage = "eng"
	defaultEngine   = 2
)

// Exit codes reported by the service.
const (
	exitParsed        = 1
	exitPartialParsed = 2
)

// Client submits receipt images for text recognition.
type Client struct {
	driver.Transport
	BaseURL  string
	Language string
	Engine   int
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL string) *Client {
	u := strings.TrimSpace(baseURL)
	if u == "" {
		u = defaultBaseURL
	}
	return &Client{BaseURL: u, Language: defaultLanguage, Engine: defaultEngine}
}

// Name returns the driver identifier.
func (c *Client) Name() string {
	return string(driver.KindOCR)
}

type parseResponse struct {
	ParsedResults []struct {
		ParsedText        string `json:"ParsedText"`
		FileParseExitCode int    `json:"FileParseExitCode"`
		ErrorMessage      string `json:"ErrorMessage"`
	} `json:"ParsedResults"`
	OCRExitCode           int             `json:"OCRExitCode"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// Recognize returns the text found in image. An image without readable text
// is an *driver.OCRError.
func (c *Client) Recognize(ctx context.Context, apiKey string, image []byte, mediaType string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("ocr client not configured")
	}
	apiKey, err := driver.RequireKey(apiKey)
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	if len(image) == 0 {
		return "", fmt.Errorf("image is required")
	}
	if strings.TrimSpace(mediaType) == "" {
		mediaType = "image/jpeg"
	}

	engine := c.Engine
	if engine <= 0 {
		engine = defaultEngine
	}
	language := strings.TrimSpace(c.Language)
	if language == "" {
		language = defaultLanguage
	}

	form := url.Values{}
	form.Set("base64Image", encode.DataURL(mediaType, image))
	form.Set("language", language)
	form.Set("OCREngine", strconv.Itoa(engine))
	form.Set("isTable", "true")
	form.Set("scale", "true")

	body, err := c.Post(ctx, driver.Call{
		Provider:    c.Name(),
		URL:         strings.TrimRight(c.BaseURL, "/") + "/parse/image",
		APIKey:      apiKey,
		Header:      http.Header{"Apikey": {apiKey}},
		ContentType: "application/x-www-form-urlencoded",
		Body:        []byte(form.Encode()),
	})
	if err != nil {
		return "", err
	}

	var parsed parseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", ocrError(0, "decode response: "+err.Error(), body)
	}
	if parsed.IsErroredOnProcessing || (parsed.OCRExitCode != exitParsed && parsed.OCRExitCode != exitPartialParsed) {
		return "", ocrError(parsed.OCRExitCode, errorText(parsed.ErrorMessage), body)
	}

	var text []string
	for _, result := range parsed.ParsedResults {
		if t := strings.TrimSpace(result.ParsedText); t != "" {
			text = append(text, t)
		}
	}
	if len(text) == 0 {
		return "", ocrError(parsed.OCRExitCode, "no text recognized", body)
	}
	return strings.Join(text, "\n"), nil
}

func ocrError(code int, reason string, raw []byte) *driver.OCRError {
	if strings.TrimSpace(reason) == "" {
		reason = "recognition failed"
	}
	return &driver.OCRError{
		DataError: driver.DataError{Provider: string(driver.KindOCR), Reason: reason, Raw: raw},
		ExitCode:  code,
	}
}

// errorText flattens ErrorMessage, which the service sends as either a
// string or a list of strings.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	return ""
}
