package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/mou514/FinanceMate-sub000/internal/metrics"
)

// ErrorResponse is the JSON error body. The errors package writes the same
// shape for handler errors; middleware runs below it and keeps its own copy.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// reject ends a request that never reached a handler: missing caller id,
// throttled or panicked.
func reject(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	env := errors.NewErrorEnvelope(code, message).WithCorrelationID(GetRequestID(r.Context()))
	writeEnvelope(w, env, status)
}

func writeEnvelope(w http.ResponseWriter, env *errors.ErrorEnvelope, status int) {
	metrics.RecordError(env.Code, status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{
		Code:      env.Code,
		Message:   env.Message,
		RequestID: env.CorrelationID,
	}})
}

// Recovery converts a handler panic into a 500. The stack goes to the
// envelope context for logging, never to the client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			metrics.RecordPanic()

			env := errors.NewErrorEnvelope("INTERNAL_ERROR", fmt.Sprintf("panic: %v", rec)).
				WithCorrelationID(GetRequestID(r.Context()))
			env, _ = env.WithContext(map[string]any{"stack_trace": string(debug.Stack())})
			env, _ = env.WithSeverity(errors.SeverityCritical)
			writeEnvelope(w, env, http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}
