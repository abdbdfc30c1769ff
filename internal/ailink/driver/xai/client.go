package xai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
)

const defaultBaseURL = "https://api.x.ai/v1"

// Client talks to xAI chat completions. The request shape follows OpenAI;
// Grok vision models read receipt images from data URLs.
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
	return string(driver.KindXAI)
}

// Complete sends one chat completion authenticated with apiKey.
func (c *Client) Complete(ctx context.Context, apiKey string, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("xai client not configured")
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
		Provider: c.Name(),
		URL:      strings.TrimRight(c.BaseURL, "/") + "/chat/completions",
		APIKey:   apiKey,
		Header:   driver.BearerHeader(apiKey),
		Body:     body,
		Model:    payload.Model,
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
