package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
)

const (
	defaultBaseURL = "https://api.anthropic.com"

	// anthropicVersion is sent as the anthropic-version header.
	anthropicVersion = "2023-06-01"

	defaultMaxTokens = 4096
)

// Client calls the Anthropic messages API.
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
	return string(driver.KindAnthropic)
}

// Complete sends one messages request authenticated with apiKey.
func (c *Client) Complete(ctx context.Context, apiKey string, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("anthropic client not configured")
	}
	apiKey, err := driver.RequireKey(apiKey)
	if err != nil {
		return nil, err
	}
	payload, err := buildMessagesRequest(req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	respBody, err := c.Post(ctx, driver.Call{
		Provider: c.Name(),
		URL:      strings.TrimSuffix(c.BaseURL, "/") + "/v1/messages",
		APIKey:   apiKey,
		Header: http.Header{
			"X-Api-Key":         {apiKey},
			"Anthropic-Version": {anthropicVersion},
		},
		Body:         body,
		Model:        payload.Model,
		ErrorMessage: errorMessage,
	})
	if err != nil {
		return nil, err
	}

	var parsed messagesResponse
	if err := driver.DecodeJSON(c.Name(), respBody, &parsed); err != nil {
		return nil, err
	}
	return toDriverResponse(&parsed)
}

// errorMessage reads {"type":"error","error":{"type":...,"message":...}}.
func errorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil || envelope.Error.Message == "" {
		return ""
	}
	if envelope.Error.Type == "" {
		return envelope.Error.Message
	}
	return envelope.Error.Type + ": " + envelope.Error.Message
}
