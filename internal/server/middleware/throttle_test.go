package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThrottleLimitsPerClient(t *testing.T) {
	throttle := NewThrottle(1, 2)
	var mu sync.Mutex
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	throttle.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	handler := throttle.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/receipts/process", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, call("10.0.0.1:1111").Code)
	require.Equal(t, http.StatusOK, call("10.0.0.1:2222").Code)

	rec := call("10.0.0.1:3333")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), "RATE_LIMITED")

	require.Equal(t, http.StatusOK, call("10.0.0.2:1111").Code)

	mu.Lock()
	now = now.Add(time.Second)
	mu.Unlock()
	require.Equal(t, http.StatusOK, call("10.0.0.1:4444").Code)
}

func TestThrottleEvictsIdleClients(t *testing.T) {
	throttle := NewThrottle(5, 1)
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	throttle.now = func() time.Time { return now }

	require.True(t, throttle.Allow("a"))
	now = now.Add(11 * time.Minute)
	require.True(t, throttle.Allow("b"))

	throttle.mu.Lock()
	defer throttle.mu.Unlock()
	require.NotContains(t, throttle.limiters, "a")
}
