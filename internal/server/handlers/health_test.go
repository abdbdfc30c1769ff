package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	fulerrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/stretchr/testify/require"
)

func TestHealthHandlerReturnsHealthyStatus(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("store", CheckFunc(func(ctx context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "healthy", resp.Status)
	require.Equal(t, "1.2.3", resp.Version)
	require.Equal(t, "healthy", resp.Checks["store"])
}

func TestReadinessReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	var seen error
	SetHTTPErrorResponder(func(w http.ResponseWriter, r *http.Request, err error) {
		seen = err
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	t.Cleanup(ResetHTTPErrorResponder)

	manager := NewHealthManager("dev")
	manager.RegisterChecker("store", CheckFunc(func(ctx context.Context) error { return errors.New("down") }))

	rec := httptest.NewRecorder()
	manager.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var envelope *fulerrors.ErrorEnvelope
	require.ErrorAs(t, seen, &envelope)
	require.Equal(t, "SERVICE_UNAVAILABLE", envelope.Code)
	require.Equal(t, "readiness probe failed", envelope.Message)
}

func TestOverallStatusTreatsTimeoutAsDegraded(t *testing.T) {
	require.Equal(t, "degraded", overallStatus(map[string]string{"store": "timeout", "providers": "healthy"}))
	require.Equal(t, "unhealthy", overallStatus(map[string]string{"store": "timeout", "providers": "unhealthy"}))
	require.Equal(t, "healthy", overallStatus(nil))
}

func TestRunChecksReportsTimeout(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("slow", CheckFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	manager.RegisterChecker("store", CheckFunc(func(ctx context.Context) error { return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	checks := manager.runChecks(ctx)
	require.Equal(t, map[string]string{"slow": "timeout", "store": "healthy"}, checks)
}
