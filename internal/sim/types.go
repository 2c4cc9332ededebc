// Package sim turns a run configuration into a guarded integration: it
// resolves the problem and method, installs the domain callbacks and
// metrics, and runs single integrations or concurrent sweeps.
package sim

import (
	"sync"

	"github.com/san-kum/odeguard/internal/config"
	"github.com/san-kum/odeguard/internal/domain"
	"github.com/san-kum/odeguard/internal/dynamo"
	"github.com/san-kum/odeguard/internal/manifold"
	"github.com/san-kum/odeguard/internal/problems"
)

// GuardStats totals what the domain callbacks did in one run.
type GuardStats struct {
	Invocations          int `json:"invocations" yaml:"invocations"`
	ShrinkIterations     int `json:"shrink_iterations" yaml:"shrink_iterations"`
	MaxShrink            int `json:"max_shrink" yaml:"max_shrink"`
	Stagnations          int `json:"stagnations" yaml:"stagnations"`
	Sanitized            int `json:"sanitized" yaml:"sanitized"`
	Projections          int `json:"projections" yaml:"projections"`
	ProjectionIterations int `json:"projection_iterations" yaml:"projection_iterations"`
	Unconverged          int `json:"unconverged" yaml:"unconverged"`
}

// Run is the outcome of one configuration. Result holds whatever was
// integrated before Err, if any.
type Run struct {
	Config  *config.Config
	Problem *problems.Problem
	Domain  problems.Domain
	Method  string
	Result  *dynamo.Result
	Guard   GuardStats
	Err     error
}

// statsObserver feeds GuardStats from the guard and projection observers.
type statsObserver struct {
	mu    sync.Mutex
	stats GuardStats
}

func (s *statsObserver) ObserveGuard(o domain.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Invocations++
	s.stats.ShrinkIterations += o.Iterations
	s.stats.MaxShrink = max(s.stats.MaxShrink, o.Iterations)
	if o.Stagnated {
		s.stats.Stagnations++
	}
	if o.Sanitized {
		s.stats.Sanitized++
	}
}

func (s *statsObserver) ObserveProjection(r manifold.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Projections++
	s.stats.ProjectionIterations += r.Iterations
	if !r.Converged {
		s.stats.Unconverged++
	}
}

func (s *statsObserver) snapshot() GuardStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// observers fans guard outcomes out to several observers.
type observers []domain.Observer

func (obs observers) ObserveGuard(o domain.Outcome) {
	for _, ob := range obs {
		ob.ObserveGuard(o)
	}
}
