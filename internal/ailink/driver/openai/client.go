package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client speaks OpenAI chat completions. The OCR pipeline also uses it for
// its structuring stage against any OpenAI-compatible endpoint.
type Client struct {
	driver.Transport
	BaseURL string
}

func NewClient(baseURL string) *Client {
	if baseURL = strings.TrimSpace(baseURL); baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{BaseURL: baseURL}
}

func (c *Client) Name() string {
	return string(driver.KindOpenAI)
}

// Complete sends one chat completion authenticated with apiKey.
func (c *Client) Complete(ctx context.Context, apiKey string, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("openai client not configured")
	}
	apiKey, err := driver.RequireKey(apiKey)
	if err != nil {
		return nil, err
	}
	payload, err := buildChatRequest(req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	respBody, err := c.Post(ctx, driver.Call{
		Provider:     c.Name(),
		URL:          strings.TrimRight(c.BaseURL, "/") + "/chat/completions",
		APIKey:       apiKey,
		Header:       driver.BearerHeader(apiKey),
		Body:         body,
		Model:        payload.Model,
		ErrorMessage: errorMessage,
	})
	if err != nil {
		return nil, err
	}

	var parsed chatCompletionResponse
	if err := driver.DecodeJSON(c.Name(), respBody, &parsed); err != nil {
		return nil, err
	}
	return toDriverResponse(&parsed)
}

// errorMessage reads {"error":{"message":...}}.
func errorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil {
		return ""
	}
	return strings.TrimSpace(envelope.Error.Message)
}
