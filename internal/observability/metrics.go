package observability

import (
	"fmt"
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

// DefaultMetricsPort is used when the exporter's bound port cannot be read
// back after asking for an ephemeral one.
const DefaultMetricsPort = 9090

var (
	// TelemetrySystem receives every metric the service emits. Nil until
	// InitMetrics runs, which turns internal/metrics into no-ops.
	TelemetrySystem *telemetry.System

	// PrometheusExporter serves the scrape endpoint that /metrics proxies.
	PrometheusExporter *exporters.PrometheusExporter

	metricsPort int
)

// InitMetrics starts a Prometheus exporter on port (0 picks a free port) and
// installs a telemetry system that writes to it. namespace prefixes every
// metric name and defaults to serviceName.
func InitMetrics(serviceName string, port int, namespace ...string) error {
	if port < 0 {
		port = 0
	}

	prefix := serviceName
	if len(namespace) > 0 && namespace[0] != "" {
		prefix = namespace[0]
	}

	exporter := exporters.NewPrometheusExporter(prefix, fmt.Sprintf(":%d", port))
	if err := exporter.Start(); err != nil {
		return err
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: exporter,
	})
	if err != nil {
		_ = exporter.Stop()
		return err
	}

	metricsPort = boundPort(exporter.GetAddr(), port)
	PrometheusExporter = exporter
	TelemetrySystem = sys
	return nil
}

// ShutdownMetrics stops the exporter and disables metric emission.
func ShutdownMetrics() error {
	exporter := PrometheusExporter
	PrometheusExporter = nil
	TelemetrySystem = nil
	if exporter == nil {
		return nil
	}
	return exporter.Stop()
}

// GetMetricsPort returns the port the Prometheus exporter is listening on.
func GetMetricsPort() int {
	return metricsPort
}

func boundPort(addr string, requested int) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err == nil {
		if port, err := strconv.Atoi(portStr); err == nil {
			return port
		}
	}
	if requested == 0 {
		return DefaultMetricsPort
	}
	return requested
}
