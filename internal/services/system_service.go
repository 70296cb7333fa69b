package services

import (
	"context"
	"time"

	domain "github.com/dzirastore/api/internal/domain"
	"github.com/dzirastore/api/internal/repositories"
)

const defaultCheckTimeout = 2 * time.Second

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemHealthReport aggregates dependency probes for readiness checks.
type SystemHealthReport struct {
	Status      string
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
	Checks      map[string]domain.SystemHealthCheck
}

// SystemService exposes operational endpoints backing data.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// SystemServiceDeps bundles collaborators required to construct the system
// service.
type SystemServiceDeps struct {
	Build  BuildInfo
	Checks []repositories.DependencyCheck
	Clock  func() time.Time
}

type systemService struct {
	build  BuildInfo
	checks []repositories.DependencyCheck
	clock  func() time.Time
}

// NewSystemService wires dependencies into a concrete SystemService
// implementation.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &systemService{
		build:  deps.Build,
		checks: deps.Checks,
		clock:  func() time.Time { return clock().UTC() },
	}, nil
}

// HealthReport probes every registered dependency. A failing probe degrades
// the overall status; the report itself never errors so readiness handlers
// always have something to render.
func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	now := s.clock()
	report := SystemHealthReport{
		Status:      domain.HealthStatusOK,
		Version:     s.build.Version,
		CommitSHA:   s.build.CommitSHA,
		Environment: s.build.Environment,
		GeneratedAt: now,
		Checks:      make(map[string]domain.SystemHealthCheck, len(s.checks)),
	}
	if !s.build.StartedAt.IsZero() {
		report.Uptime = now.Sub(s.build.StartedAt)
	}

	for _, check := range s.checks {
		if check.Check == nil {
			continue
		}
		timeout := check.Timeout
		if timeout <= 0 {
			timeout = defaultCheckTimeout
		}
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		started := s.clock()
		err := check.Check(checkCtx)
		cancel()

		entry := domain.SystemHealthCheck{
			Status:    domain.HealthStatusOK,
			Latency:   s.clock().Sub(started),
			CheckedAt: started,
		}
		if err != nil {
			entry.Status = domain.HealthStatusDegraded
			entry.Error = err.Error()
			report.Status = domain.HealthStatusDegraded
		}
		report.Checks[check.Name] = entry
	}

	return report, nil
}
