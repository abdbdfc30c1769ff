package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/mou514/FinanceMate-sub000/internal/metrics"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
	statusTimeout   = "timeout"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse is the body of the live/ready/startup probes.
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// HealthManager holds the named checks behind the health endpoints: store
// reachability, configured providers and telemetry.
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	version  string
}

func NewHealthManager(version string) *HealthManager {
	return &HealthManager{checkers: make(map[string]HealthChecker), version: version}
}

// RegisterChecker adds or replaces the check called name.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	hm.checkers[name] = checker
	hm.mu.Unlock()
}

// runChecks runs every check concurrently and maps name to status. A check
// that hits the deadline reports "timeout" instead of "unhealthy".
func (hm *HealthManager) runChecks(ctx context.Context) map[string]string {
	hm.mu.RLock()
	snapshot := make(map[string]HealthChecker, len(hm.checkers))
	for name, c := range hm.checkers {
		snapshot[name] = c
	}
	hm.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(snapshot))
	)
	for name, checker := range snapshot {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := checker.CheckHealth(ctx)
			metrics.RecordHealthCheck(name, err == nil, time.Since(start))

			status := statusHealthy
			switch {
			case err == nil:
			case stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
				status = statusTimeout
			default:
				status = statusUnhealthy
			}
			mu.Lock()
			results[name] = status
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// overallStatus is unhealthy if any check failed, degraded if any timed out.
func overallStatus(checks map[string]string) string {
	overall := statusHealthy
	for _, status := range checks {
		switch status {
		case statusUnhealthy:
			return statusUnhealthy
		case statusTimeout, statusDegraded:
			overall = statusDegraded
		}
	}
	return overall
}

type probeSpec struct {
	name    string
	failure string
	timeout time.Duration
}

var (
	aggregateProbe = probeSpec{"", "aggregate health check failed", 5 * time.Second}
	livenessProbe  = probeSpec{"live", "liveness probe failed", 2 * time.Second}
	readinessProbe = probeSpec{"ready", "readiness probe failed", 5 * time.Second}
	startupProbe   = probeSpec{"startup", "startup probe failed", 3 * time.Second}
)

func (hm *HealthManager) serveProbe(w http.ResponseWriter, r *http.Request, spec probeSpec, body func(status string, checks map[string]string) any) {
	ctx, cancel := context.WithTimeout(r.Context(), spec.timeout)
	defer cancel()

	checks := hm.runChecks(ctx)
	status := overallStatus(checks)
	if status == statusUnhealthy {
		respondWithError(w, r, unavailableEnvelope(spec, status, checks))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body(status, checks))
}

func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, aggregateProbe, func(status string, checks map[string]string) any {
		return HealthResponse{
			Status:    status,
			Version:   hm.version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checks,
		}
	})
}

func probeBody(status string, _ map[string]string) any {
	return ProbeResponse{Status: status, Timestamp: time.Now().UTC()}
}

func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, livenessProbe, probeBody)
}

// ReadinessHandler fails while the store is unreachable.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, readinessProbe, probeBody)
}

func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, startupProbe, probeBody)
}

func unavailableEnvelope(spec probeSpec, status string, checks map[string]string) *errors.ErrorEnvelope {
	details := map[string]any{"status": status, "checks": checks}
	if spec.name != "" {
		details["probe"] = spec.name
	}
	env := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", spec.failure).WithDetails(details)

	var failing []string
	for name, result := range checks {
		if result != statusHealthy {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)
	env, _ = env.WithContext(map[string]any{"unhealthy_checks": failing})
	return env
}
