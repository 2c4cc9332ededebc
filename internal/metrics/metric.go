// Package metrics measures guarded trajectories: scalar summaries computed
// step by step, and prometheus counters fed by the guard and projection
// observers.
package metrics

import (
	"github.com/san-kum/odeguard/internal/callback"
	"github.com/san-kum/odeguard/internal/dynamo"
)

type Metric interface {
	Name() string
	Observe(x dynamo.State, p dynamo.Params, t float64)
	Value() float64
	Reset()
}

// Callback observes the initial state and the state after every accepted
// step. Install it after the domain callbacks so it sees corrected states.
func Callback(ms ...Metric) *callback.Discrete {
	observe := func(integ dynamo.Integrator) error {
		for _, m := range ms {
			m.Observe(integ.State(), integ.Params(), integ.Time())
		}
		return nil
	}
	return &callback.Discrete{
		Name: "metrics",
		Initialize: func(integ dynamo.Integrator) error {
			for _, m := range ms {
				m.Reset()
			}
			return observe(integ)
		},
		Affect: observe,
	}
}

// Collect writes every metric's value into out.
func Collect(out map[string]float64, ms ...Metric) {
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
}
