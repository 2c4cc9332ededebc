package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/san-kum/odeguard/internal/domain"
	"github.com/san-kum/odeguard/internal/manifold"
)

// GuardMetrics counts what the domain guard and the manifold projection do
// during runs. Each instance has its own registry so concurrent runs do not
// collide.
type GuardMetrics struct {
	registry *prometheus.Registry

	invocations   *prometheus.CounterVec
	sanitized     *prometheus.CounterVec
	stagnations   *prometheus.CounterVec
	shrinks       *prometheus.HistogramVec
	projections   prometheus.Histogram
	unconverged   prometheus.Counter
	projectionRes prometheus.Gauge
}

func NewGuardMetrics() *GuardMetrics {
	m := &GuardMetrics{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odeguard_guard_invocations_total",
			Help: "Number of times a domain guard ran after an accepted step",
		}, []string{"domain"}),
		sanitized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odeguard_guard_sanitized_total",
			Help: "Number of steps whose state had to be clamped into the domain",
		}, []string{"domain"}),
		stagnations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odeguard_guard_stagnations_total",
			Help: "Number of times the step could not be shrunk any further",
		}, []string{"domain"}),
		shrinks: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odeguard_guard_shrink_iterations",
			Help:    "Shrink iterations per guard invocation",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
		}, []string{"domain"}),
		projections: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "odeguard_projection_iterations",
			Help:    "Newton iterations per manifold projection",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		}),
		unconverged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odeguard_projection_unconverged_total",
			Help: "Number of projections that stopped above tolerance",
		}),
		projectionRes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "odeguard_projection_last_residual",
			Help: "Residual left by the most recent projection",
		}),
	}
	m.registry.MustRegister(m.invocations, m.sanitized, m.stagnations, m.shrinks,
		m.projections, m.unconverged, m.projectionRes)
	return m
}

var _ domain.Observer = (*GuardMetrics)(nil)

func (m *GuardMetrics) ObserveGuard(o domain.Outcome) {
	m.invocations.WithLabelValues(o.Kind).Inc()
	m.shrinks.WithLabelValues(o.Kind).Observe(float64(o.Iterations))
	if o.Sanitized {
		m.sanitized.WithLabelValues(o.Kind).Inc()
	}
	if o.Stagnated {
		m.stagnations.WithLabelValues(o.Kind).Inc()
	}
}

func (m *GuardMetrics) ObserveProjection(r manifold.Result) {
	m.projections.Observe(float64(r.Iterations))
	m.projectionRes.Set(r.Residual)
	if !r.Converged {
		m.unconverged.Inc()
	}
}

func (m *GuardMetrics) Registry() *prometheus.Registry { return m.registry }

// WriteText writes every metric in the prometheus text exposition format.
func (m *GuardMetrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
