package metrics

import (
	"math"

	"github.com/san-kum/odeguard/internal/dynamo"
)

// MinComponent tracks the smallest component seen over the trajectory.
type MinComponent struct {
	min float64
}

func NewMinComponent() *MinComponent {
	return &MinComponent{min: math.Inf(1)}
}

func (m *MinComponent) Name() string { return "min_component" }

func (m *MinComponent) Observe(x dynamo.State, _ dynamo.Params, _ float64) {
	m.min = math.Min(m.min, x.Min())
}

func (m *MinComponent) Value() float64 { return m.min }

func (m *MinComponent) Reset() { m.min = math.Inf(1) }

// MaxResidual tracks the largest |g_i(u)| over the trajectory.
type MaxResidual struct {
	g     dynamo.Residual
	resid dynamo.State
	max   float64
}

func NewMaxResidual(g dynamo.Residual, size int) *MaxResidual {
	return &MaxResidual{g: g, resid: make(dynamo.State, size)}
}

func (m *MaxResidual) Name() string { return "max_residual" }

func (m *MaxResidual) Observe(x dynamo.State, p dynamo.Params, t float64) {
	if len(m.resid) == 0 {
		m.resid = make(dynamo.State, len(x))
	}
	if err := m.g.Eval(m.resid, x, p, t); err != nil {
		m.max = math.NaN()
		return
	}
	for _, r := range m.resid {
		m.max = math.Max(m.max, math.Abs(r))
	}
}

func (m *MaxResidual) Value() float64 { return m.max }

func (m *MaxResidual) Reset() { m.max = 0 }

// InvariantDrift is the largest relative change of a conserved quantity
// against its value at the first observation.
type InvariantDrift struct {
	fn       func(dynamo.State, dynamo.Params) float64
	initial  float64
	maxDrift float64
	samples  int
}

func NewInvariantDrift(fn func(dynamo.State, dynamo.Params) float64) *InvariantDrift {
	return &InvariantDrift{fn: fn}
}

func (d *InvariantDrift) Name() string { return "invariant_drift" }

func (d *InvariantDrift) Observe(x dynamo.State, p dynamo.Params, _ float64) {
	v := d.fn(x, p)
	if d.samples == 0 {
		d.initial = v
	}
	d.samples++

	if d.initial != 0 {
		d.maxDrift = math.Max(d.maxDrift, math.Abs(v-d.initial)/math.Abs(d.initial))
	}
}

func (d *InvariantDrift) Value() float64 { return d.maxDrift }

func (d *InvariantDrift) Reset() {
	d.initial = 0
	d.maxDrift = 0
	d.samples = 0
}
