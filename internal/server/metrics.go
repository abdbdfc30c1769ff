package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	apperrors "github.com/mou514/FinanceMate-sub000/internal/errors"
	"github.com/mou514/FinanceMate-sub000/internal/observability"
)

var metricsProxyClient = &http.Client{Timeout: 5 * time.Second}

// hopHeaders are not copied from the exporter response.
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// MetricsHandler proxies the Prometheus exporter so /metrics can be scraped
// on the API port.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if observability.PrometheusExporter == nil {
		apperrors.RespondWithError(w, r, errors.NewErrorEnvelope(apperrors.CodeUnavailable, "Metrics exporter not initialized"))
		return
	}

	port := observability.GetMetricsPort()
	if port == 0 {
		port = 9090
	}
	metricsURL := fmt.Sprintf("http://127.0.0.1:%d/metrics", port)

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, metricsURL, nil)
	if err != nil {
		env, _ := errors.NewErrorEnvelope("INTERNAL_ERROR", "Unable to construct metrics request").
			WithContext(map[string]interface{}{"metrics_url": metricsURL, "wrapped_error": err.Error()})
		apperrors.RespondWithError(w, r, env)
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := metricsProxyClient.Do(req)
	if err != nil {
		env, _ := errors.NewErrorEnvelope(apperrors.CodeUnavailable, "Prometheus exporter unavailable").
			WithContext(map[string]interface{}{"metrics_url": metricsURL, "wrapped_error": err.Error()})
		apperrors.RespondWithError(w, r, env)
		return
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	for key, values := range resp.Header {
		if hopHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	if resp.Header.Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Failed to write metrics response", zap.Error(err))
	}
}
