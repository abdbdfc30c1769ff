package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mou514/FinanceMate-sub000/internal/observability"
)

// getEndpointPattern labels a request by its chi route pattern. Paths that
// matched no route fall into a handful of fixed buckets so a scanner cannot
// blow up label cardinality.
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	switch path := r.URL.Path; {
	case path == "/", path == "/version", path == "/metrics":
		return path
	case path == "/health", strings.HasPrefix(path, "/health/"):
		return "/health/*"
	case strings.HasPrefix(path, "/receipts/"):
		return "/receipts/*"
	default:
		return "/unknown"
	}
}

func errorClass(status int) string {
	if status >= 500 {
		return "server_error"
	}
	return "client_error"
}

// RequestMetrics records request count, latency and body sizes per route,
// then writes one access log line.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sys := observability.TelemetrySystem
		if sys == nil {
			next.ServeHTTP(w, r)
			return
		}

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		requestSize := max(r.ContentLength, 0)
		responseSize := int64(ww.BytesWritten())

		endpoint := getEndpointPattern(r)
		status := strconv.Itoa(code)
		route := map[string]string{"method": r.Method, "endpoint": endpoint}
		withStatus := map[string]string{"method": r.Method, "endpoint": endpoint, "status": status}

		_ = sys.Counter("http_requests_total", 1, withStatus)
		_ = sys.Histogram("http_request_duration_ms", elapsed, withStatus)
		_ = sys.Gauge("http_request_size_bytes", float64(requestSize), route)
		_ = sys.Gauge("http_response_size_bytes", float64(responseSize), route)
		if code >= 400 {
			_ = sys.Counter("http_errors_total", 1, map[string]string{
				"method": r.Method, "endpoint": endpoint, "status": status, "error_type": errorClass(code),
			})
		}

		if logger := observability.ServerLogger; logger != nil {
			logger.Info("HTTP request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", endpoint),
				zap.Int("status", code),
				zap.Duration("duration", elapsed),
				zap.Int64("request_size", requestSize),
				zap.Int64("response_size", responseSize),
				zap.String("requestID", GetRequestID(r.Context())),
			)
		}
	})
}
