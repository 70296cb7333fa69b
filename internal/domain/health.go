package domain

import "time"

const (
	// HealthStatusOK reports a healthy component.
	HealthStatusOK = "ok"
	// HealthStatusDegraded reports a component that failed its probe.
	HealthStatusDegraded = "degraded"
)

// SystemHealthCheck records one dependency probe outcome.
type SystemHealthCheck struct {
	Status    string
	Latency   time.Duration
	Error     string
	CheckedAt time.Time
}
