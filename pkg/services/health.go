package services

import (
	"context"
	"time"
)

// healthCheckTimeout bounds each collaborator probe.
const healthCheckTimeout = 5 * time.Second

// HealthChecker is the probe every collaborator exposes.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthReport lists per-collaborator reachability.
type HealthReport struct {
	Healthy    bool              `json:"healthy"`
	Service    string            `json:"service"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Health probes the registered collaborators.
type Health struct {
	service  string
	version  string
	checkers map[string]HealthChecker
}

// NewHealth creates a health service over named collaborator probes.
func NewHealth(service, version string, checkers map[string]HealthChecker) *Health {
	return &Health{service: service, version: version, checkers: checkers}
}

// Check probes every collaborator and reports "ok" or the error string. The
// report is healthy only when every probe passes.
func (h *Health) Check(ctx context.Context) HealthReport {
	report := HealthReport{
		Healthy:    true,
		Service:    h.service,
		Version:    h.version,
		Components: make(map[string]string, len(h.checkers)),
		Timestamp:  time.Now().UTC(),
	}

	for name, checker := range h.checkers {
		probeCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)

		if err := checker.HealthCheck(probeCtx); err != nil {
			report.Healthy = false
			report.Components[name] = err.Error()
		} else {
			report.Components[name] = "ok"
		}

		cancel()
	}

	return report
}
