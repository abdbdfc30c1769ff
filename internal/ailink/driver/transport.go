package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBytes caps provider response bodies. Extraction replies are a
// few kilobytes; anything near this is a misrouted endpoint.
const maxResponseBytes = 8 << 20

// Transport performs the POST shared by every provider client. Timeout
// bounds a single call on top of the caller's context.
type Transport struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Call is one authenticated provider request.
type Call struct {
	Provider    string
	URL         string
	APIKey      string
	Header      http.Header
	ContentType string
	Body        []byte
	Model       string
	// ErrorMessage extracts a readable message from a non-2xx body.
	ErrorMessage func(body []byte) string
}

// Post sends call and returns the 2xx response body. Network failures are
// *TransportError; other statuses are *ProviderError.
func (t Transport) Post(ctx context.Context, call Call) ([]byte, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, call.URL, bytes.NewReader(call.Body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range call.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	contentType := call.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)

	client := t.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	entry := TraceEntry{
		Driver:     call.Provider,
		Credential: MaskKey(call.APIKey),
		Endpoint:   call.URL,
		Method:     http.MethodPost,
		Model:      call.Model,
	}
	if json.Valid(call.Body) {
		entry.RequestBody = call.Body
	}

	start := time.Now()
	resp, err := client.Do(req)
	entry.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		entry.Error = err.Error()
		Trace(entry)
		return nil, &TransportError{Provider: call.Provider, Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck // read to EOF below

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Provider: call.Provider, Err: fmt.Errorf("read response: %w", err)}
	}
	entry.StatusCode = resp.StatusCode
	if json.Valid(body) {
		entry.Response = body
	}
	Trace(entry)

	if resp.StatusCode/100 != 2 {
		msg := strings.TrimSpace(string(body))
		if call.ErrorMessage != nil {
			if m := call.ErrorMessage(body); m != "" {
				msg = m
			}
		}
		return nil, &ProviderError{Provider: call.Provider, StatusCode: resp.StatusCode, Message: msg, RawResponse: body}
	}
	return body, nil
}

// DecodeJSON unmarshals a provider body, reporting failures as *DataError.
func DecodeJSON(provider string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &DataError{Provider: provider, Reason: "decode response: " + err.Error(), Raw: body}
	}
	return nil
}

// BearerHeader is the Authorization header used by OpenAI-style APIs.
func BearerHeader(apiKey string) http.Header {
	return http.Header{"Authorization": {"Bearer " + apiKey}}
}

// RequireKey trims apiKey and rejects an empty one.
func RequireKey(apiKey string) (string, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "", fmt.Errorf("api key is required")
	}
	return apiKey, nil
}
