package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mou514/FinanceMate-sub000/internal/ailink"
	"github.com/mou514/FinanceMate-sub000/internal/core/engine"
	"github.com/mou514/FinanceMate-sub000/internal/imagecheck"
	"github.com/mou514/FinanceMate-sub000/internal/metrics"
	"github.com/mou514/FinanceMate-sub000/internal/observability"
	"github.com/mou514/FinanceMate-sub000/internal/server/middleware"
)

// Error codes returned in HTTP error bodies.
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeQuotaExceeded    = "QUOTA_EXCEEDED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeExtractionFailed = "EXTRACTION_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeDatabase         = "DATABASE_ERROR"
	CodeTimeout          = "TIMEOUT"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
)

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewUnauthorizedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeUnauthorized, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

// NewValidationError covers rejected uploads and malformed drafts.
func NewValidationError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeValidationFailed, message)
}

func NewRateLimitedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeRateLimited, message)
}

// NewQuotaExceededError renders a quota rejection with an hours-until-reset
// estimate, e.g. "Daily limit reached. Try again in 5 hours."
func NewQuotaExceededError(qe *engine.QuotaExceededError) *errors.ErrorEnvelope {
	hours := qe.HoursUntilReset()
	unit := "hours"
	if hours == 1 {
		unit = "hour"
	}
	env := errors.NewErrorEnvelope(CodeQuotaExceeded, fmt.Sprintf("Daily limit reached. Try again in %d %s.", hours, unit))
	env, _ = env.WithContext(map[string]any{
		"limit":             qe.Limit,
		"used":              qe.Used,
		"reset_at":          qe.ResetAt.UnixMilli(),
		"hours_until_reset": hours,
	})
	return env
}

func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

// Wrap builds an envelope for code carrying err as context and the request's
// correlation id.
func Wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(code, message)
	envelope = envelope.WithCorrelationID(extractCorrelationID(ctx))
	envelope = envelope.WithTraceID(extractCorrelationID(ctx))
	return withWrappedError(envelope, err)
}

func WrapInvalidInput(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeInvalidInput, err, message)
}

func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeInternal, err, message)
}

func WrapDatabaseError(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeDatabase, err, message)
}

// WrapExtractionFailed reports an extraction that failed after fallback. Only
// the classified failure is exposed; raw provider text stays in the logs.
func WrapExtractionFailed(ctx context.Context, ee *engine.ExtractionError) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(CodeExtractionFailed, "Failed to process receipt")
	envelope = envelope.WithCorrelationID(extractCorrelationID(ctx))
	details := map[string]any{}
	if ee.Provider != "" {
		details["provider"] = ee.Provider
	}
	if ee.Failure != nil {
		details["reason"] = ee.Failure.Code
		if ee.Failure.Stage != "" {
			details["stage"] = ee.Failure.Stage
		}
	}
	if len(details) > 0 {
		envelope, _ = envelope.WithContext(details)
	}
	envelope, _ = envelope.WithSeverity(errors.SeverityMedium)
	return envelope
}

// FromDomainError translates pipeline errors into envelopes. Unknown errors
// become INTERNAL_ERROR.
func FromDomainError(ctx context.Context, err error) *errors.ErrorEnvelope {
	if err == nil {
		return EnsureEnvelope(nil)
	}

	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		return envelope
	}

	var quotaErr *engine.QuotaExceededError
	if stderrors.As(err, &quotaErr) {
		return NewQuotaExceededError(quotaErr).WithCorrelationID(extractCorrelationID(ctx))
	}

	var dimErr *imagecheck.DimensionError
	if stderrors.As(err, &dimErr) {
		env := NewValidationError(dimErr.Error()).WithCorrelationID(extractCorrelationID(ctx))
		env, _ = env.WithContext(map[string]any{"max_dimension": dimErr.Max})
		return env
	}

	var validationErr *engine.ValidationError
	if stderrors.As(err, &validationErr) {
		return NewValidationError(validationErr.Error()).WithCorrelationID(extractCorrelationID(ctx))
	}

	var extractionErr *engine.ExtractionError
	if stderrors.As(err, &extractionErr) {
		return WrapExtractionFailed(ctx, extractionErr)
	}

	if stderrors.Is(err, ailink.ErrNoCredentials) {
		return WrapExtractionFailed(ctx, &engine.ExtractionError{Err: err, Failure: ailink.Classify(err, ailink.DebugConfig{})})
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return Wrap(ctx, CodeTimeout, err, "request timed out")
	}

	return WrapInternal(ctx, err, "unexpected error")
}

// extractCorrelationID prefers the request id so log lines and the response
// body agree.
func extractCorrelationID(ctx context.Context) string {
	if ctx != nil {
		if requestID := middleware.GetRequestID(ctx); requestID != "" {
			return requestID
		}
	}
	return uuid.New().String()
}

// EnsureEnvelope returns err as an envelope, wrapping foreign errors as
// INTERNAL_ERROR.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope
	}

	env := errors.NewErrorEnvelope(CodeInternal, "unexpected error")
	env, _ = env.WithContext(map[string]any{
		"wrapped_error": err.Error(),
	})
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

// EnsureCorrelationID fills a missing correlation id from ctx.
func EnsureCorrelationID(envelope *errors.ErrorEnvelope, ctx context.Context) *errors.ErrorEnvelope {
	if envelope == nil {
		return nil
	}
	if envelope.CorrelationID != "" {
		return envelope
	}

	var correlationID string
	if ctx != nil {
		correlationID = middleware.GetRequestID(ctx)
	}
	if correlationID == "" {
		correlationID = "fallback-" + errors.GenerateCorrelationID()
	}
	return envelope.WithCorrelationID(correlationID)
}

func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	return HTTPStatusFromCode(envelope.Code)
}

var statusByCode = map[string]int{
	CodeInvalidInput:     http.StatusBadRequest,
	CodeValidationFailed: http.StatusBadRequest,
	CodeNotFound:         http.StatusNotFound,
	CodeUnauthorized:     http.StatusUnauthorized,
	CodeMethodNotAllowed: http.StatusMethodNotAllowed,
	CodePayloadTooLarge:  http.StatusRequestEntityTooLarge,
	CodeQuotaExceeded:    http.StatusTooManyRequests,
	CodeRateLimited:      http.StatusTooManyRequests,
	CodeTimeout:          http.StatusGatewayTimeout,
	CodeUnavailable:      http.StatusServiceUnavailable,
}

// HTTPStatusFromCode maps an error code to its status; unknown codes are 500.
func HTTPStatusFromCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func withWrappedError(envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	if envelope == nil || err == nil {
		return envelope
	}
	if updated, werr := envelope.WithContext(map[string]any{"wrapped_error": err.Error()}); werr == nil {
		return updated
	}
	return envelope
}

// internalContextKeys are logged with the error but never sent to clients.
var internalContextKeys = map[string]bool{"wrapped_error": true, "stack_trace": true}

// ResponseDetails merges envelope details with its public context. Details
// win on key collisions.
func ResponseDetails(envelope *errors.ErrorEnvelope) map[string]any {
	if envelope == nil {
		return nil
	}
	details := make(map[string]any, len(envelope.Details)+len(envelope.Context))
	for key, value := range envelope.Context {
		if !internalContextKeys[key] {
			details[key] = value
		}
	}
	for key, value := range envelope.Details {
		details[key] = value
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// HTTPErrorDetail captures the error body returned to callers.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HTTPErrorResponse is the failure counterpart of {success:true, data}.
type HTTPErrorResponse struct {
	Success bool            `json:"success"`
	Error   HTTPErrorDetail `json:"error"`
}

// RespondWithError normalizes the supplied error and writes a JSON response.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	var ctx context.Context
	if r != nil {
		ctx = r.Context()
	}
	RespondWithEnvelope(w, r, FromDomainError(ctx, err))
}

// RespondWithEnvelope finalizes the provided envelope, logging and emitting metrics.
func RespondWithEnvelope(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope) {
	if w == nil {
		return
	}

	if r != nil {
		envelope = EnsureCorrelationID(envelope, r.Context())
	} else {
		envelope = EnsureCorrelationID(envelope, nil)
	}

	statusCode := HTTPStatusFromEnvelope(envelope)

	response := HTTPErrorResponse{
		Error: HTTPErrorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			Details:   ResponseDetails(envelope),
			RequestID: envelope.CorrelationID,
		},
	}

	logHTTPError(envelope, statusCode)
	emitErrorMetrics(r, envelope, statusCode)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func logHTTPError(envelope *errors.ErrorEnvelope, statusCode int) {
	if observability.ServerLogger == nil || envelope == nil {
		return
	}

	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", statusCode),
	}
	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}
	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}
	if envelope.CorrelationID != "" {
		fields = append(fields, zap.String("request_id", envelope.CorrelationID))
	}

	switch envelope.Severity {
	case errors.SeverityCritical, errors.SeverityHigh:
		observability.ServerLogger.Error(envelope.Message, fields...)
	case errors.SeverityMedium:
		observability.ServerLogger.Warn(envelope.Message, fields...)
	default:
		observability.ServerLogger.Info(envelope.Message, fields...)
	}
}

func emitErrorMetrics(r *http.Request, envelope *errors.ErrorEnvelope, statusCode int) {
	if envelope == nil {
		return
	}

	metrics.RecordError(envelope.Code, statusCode)
	if r != nil {
		metrics.RecordErrorByEndpoint(r.URL.Path, envelope.Code)
	}
}
