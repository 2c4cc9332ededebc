package domain

import (
	"math"

	"github.com/san-kum/odeguard/internal/dynamo"
)

// fakeIntegrator samples a straight line through its current state, which
// makes the shrink loop's probes easy to predict.
type fakeIntegrator struct {
	t, dt, proposed float64
	tdir            float64
	dtMin           float64
	tstop           float64
	hasStop         bool
	u, slope        dynamo.State
	abstol          dynamo.Tolerance
	verbose         bool

	modified int
	samples  []float64
}

func newFake(u, slope dynamo.State) *fakeIntegrator {
	return &fakeIntegrator{
		tdir:   1,
		u:      u,
		slope:  slope,
		abstol: dynamo.Scalar(1e-6),
	}
}

func (f *fakeIntegrator) Time() float64 { return f.t }
func (f *fakeIntegrator) State() dynamo.State { return f.u }
func (f *fakeIntegrator) Params() dynamo.Params { return nil }
func (f *fakeIntegrator) Dt() float64 { return f.dt }
func (f *fakeIntegrator) SetDt(dt float64) { f.dt = dt }
func (f *fakeIntegrator) ProposedDt() float64 { return f.proposed }
func (f *fakeIntegrator) SetProposedDt(dt float64) { f.proposed = dt }
func (f *fakeIntegrator) Direction() float64 { return f.tdir }
func (f *fakeIntegrator) AbsTol() dynamo.Tolerance { return f.abstol }
func (f *fakeIntegrator) Verbose() bool { return f.verbose }
func (f *fakeIntegrator) MarkModified() { f.modified++ }

func (f *fakeIntegrator) SampleInto(dst dynamo.State, t float64) {
	f.samples = append(f.samples, t)
	for i := range dst {
		dst[i] = f.u[i] + (t-f.t)*f.slope[i]
	}
}

func (f *fakeIntegrator) ClampDt(dt float64) float64 {
	sign := math.Copysign(1, dt)
	mag := math.Abs(dt)
	if mag < f.dtMin {
		mag = f.dtMin
	}
	dt = sign * mag
	if f.hasStop && f.tdir*(f.t+dt-f.tstop) > 0 {
		dt = f.tstop - f.t
	}
	return dt
}

var _ dynamo.Integrator = (*fakeIntegrator)(nil)

func nan() float64 { return math.NaN() }
