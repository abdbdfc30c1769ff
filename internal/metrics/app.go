// Package metrics emits the service's counters and histograms through the
// global telemetry system. Every function is a no-op until serve has
// initialized telemetry, so the engine can call them from CLI runs and tests.
package metrics

import (
	"strconv"
	"time"

	"github.com/mou514/FinanceMate-sub000/internal/observability"
)

// Metric names. The Prometheus exporter prefixes them with the app namespace.
const (
	ExtractionsTotal      = "extractions_total"
	ExtractionDurationMS  = "extraction_duration_ms"
	QuotaRejectionsTotal  = "quota_rejections_total"
	ImageRejectionsTotal  = "image_rejections_total"
	BudgetAlertsTotal     = "budget_alerts_total"
	HealthCheckTotal      = "health_check_total"
	HealthCheckDurationMS = "health_check_duration_ms"
	ServerStartTime       = "server_start_time_seconds"

	ErrorsTotal        = "errors_total"
	ErrorsByRouteTotal = "errors_by_route_total"
	PanicsTotal        = "panics_total"
)

func count(name string, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Counter(name, 1, labels)
	}
}

func observe(name string, d time.Duration, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Histogram(name, d, labels)
	}
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// RecordExtraction records one provider attempt.
func RecordExtraction(provider, kind string, success bool, duration time.Duration) {
	count(ExtractionsTotal, map[string]string{
		"provider": provider,
		"kind":     kind,
		"status":   outcome(success, "success", "failure"),
	})
	observe(ExtractionDurationMS, duration, map[string]string{
		"provider": provider,
		"kind":     kind,
	})
}

// RecordQuotaRejection records a request refused by the usage quota.
func RecordQuotaRejection(action string) {
	count(QuotaRejectionsTotal, map[string]string{"action": action})
}

// RecordImageRejection records an upload refused before extraction.
func RecordImageRejection(format string) {
	count(ImageRejectionsTotal, map[string]string{"format": format})
}

// RecordBudgetAlert records a budget notification.
func RecordBudgetAlert(category string) {
	count(BudgetAlertsTotal, map[string]string{"category": category})
}

// RecordHealthCheck records a health check execution.
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	count(HealthCheckTotal, map[string]string{
		"check":  checkName,
		"status": outcome(healthy, "healthy", "unhealthy"),
	})
	observe(HealthCheckDurationMS, duration, map[string]string{"check": checkName})
}

// RecordError records an error response by envelope code and HTTP status.
func RecordError(errorCode string, httpStatus int) {
	count(ErrorsTotal, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordErrorByEndpoint records an error response against its route pattern.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	count(ErrorsByRouteTotal, map[string]string{
		"endpoint":   endpoint,
		"error_code": errorCode,
	})
}

// RecordPanic records a recovered handler panic.
func RecordPanic() {
	count(PanicsTotal, nil)
}

// SetServerStartTime records the server start time (Unix timestamp).
func SetServerStartTime(timestamp int64) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}
