package driver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTransportPostReturnsBodyAndSendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer k-123", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	body, err := Transport{HTTPClient: server.Client()}.Post(context.Background(), Call{
		Provider: "openai",
		URL:      server.URL,
		APIKey:   "k-123",
		Header:   BearerHeader("k-123"),
		Body:     []byte(`{}`),
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(body))
}

func TestTransportPostMapsStatusToProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer server.Close()

	_, err := Transport{}.Post(context.Background(), Call{
		Provider:     "xai",
		URL:          server.URL,
		ErrorMessage: func([]byte) string { return "slow down" },
	})
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	require.Equal(t, "slow down", perr.Message)
}

func TestTransportPostTimeoutIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	_, err := Transport{Timeout: 20 * time.Millisecond}.Post(context.Background(), Call{Provider: "anthropic", URL: server.URL})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestDecodeJSONReportsDataError(t *testing.T) {
	var v struct{}
	err := DecodeJSON("openai", []byte("not json"), &v)
	var derr *DataError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, "openai", derr.Provider)
}
