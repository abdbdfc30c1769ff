package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mou514/FinanceMate-sub000/internal/ailink"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
	"github.com/mou514/FinanceMate-sub000/internal/core/engine"
	"github.com/mou514/FinanceMate-sub000/internal/imagecheck"
)

func TestHTTPStatusFromCode(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, HTTPStatusFromCode(CodeValidationFailed))
	require.Equal(t, http.StatusTooManyRequests, HTTPStatusFromCode(CodeQuotaExceeded))
	require.Equal(t, http.StatusTooManyRequests, HTTPStatusFromCode(CodeRateLimited))
	require.Equal(t, http.StatusInternalServerError, HTTPStatusFromCode(CodeExtractionFailed))
	require.Equal(t, http.StatusUnauthorized, HTTPStatusFromCode(CodeUnauthorized))
	require.Equal(t, http.StatusInternalServerError, HTTPStatusFromCode("SOMETHING_NEW"))
}

func TestFromDomainErrorQuota(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	qe := &engine.QuotaExceededError{Action: "receipt_extraction", Limit: 10, Used: 10, ResetAt: now.Add(4*time.Hour + time.Minute), Now: now}

	env := FromDomainError(context.Background(), fmt.Errorf("check: %w", qe))
	require.Equal(t, CodeQuotaExceeded, env.Code)
	require.Contains(t, env.Message, "5 hours")
	require.Equal(t, http.StatusTooManyRequests, HTTPStatusFromEnvelope(env))
}

func TestFromDomainErrorValidation(t *testing.T) {
	dim := &imagecheck.DimensionError{Info: imagecheck.Info{Width: 4000, Height: 3000, Format: imagecheck.FormatPNG}, Max: 2000}
	env := FromDomainError(context.Background(), &engine.ValidationError{Field: "image", Reason: dim.Error(), Err: dim})
	require.Equal(t, CodeValidationFailed, env.Code)
	require.Contains(t, env.Message, "4000x3000")

	env = FromDomainError(context.Background(), &engine.ValidationError{Field: "date", Reason: "date must be YYYY-MM-DD"})
	require.Equal(t, CodeValidationFailed, env.Code)
}

func TestFromDomainErrorExtractionHidesRaw(t *testing.T) {
	dataErr := &driver.DataError{Provider: "openai", Reason: "missing category", Raw: []byte(`{"merchant":"secret"}`)}
	err := &engine.ExtractionError{
		Provider: "openai-main",
		Failure:  ailink.Classify(dataErr, ailink.DebugConfig{}),
		Err:      &ailink.ExhaustedError{Attempts: 1, Err: dataErr},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/receipts/process", nil)
	RespondWithError(rec, req, err)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "secret")

	var body HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, CodeExtractionFailed, body.Error.Code)
	require.Equal(t, "EXTRACTION_INVALID_OUTPUT", body.Error.Details["reason"])
	require.NotEmpty(t, body.Error.RequestID)
}

func TestFromDomainErrorUnknown(t *testing.T) {
	env := FromDomainError(context.Background(), errors.New("boom"))
	require.Equal(t, CodeInternal, env.Code)
	require.Nil(t, ResponseDetails(env))
}

func TestEnsureEnvelopePassesThrough(t *testing.T) {
	env := NewNotFoundError("missing")
	require.Same(t, env, EnsureEnvelope(env))
	require.Equal(t, CodeInternal, EnsureEnvelope(nil).Code)
}
