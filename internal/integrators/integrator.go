package integrators

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"

	"github.com/san-kum/odeguard/internal/callback"
	"github.com/san-kum/odeguard/internal/dynamo"
)

const (
	safety   = 0.9
	minScale = 0.2
	maxScale = 10.0
)

type Options struct {
	// Dt is the initial step size magnitude. Zero selects one automatically.
	Dt       float64
	AbsTol   dynamo.Tolerance
	RelTol   float64
	DtMin    float64
	DtMax    float64
	TStops   []float64
	MaxSteps int

	// Adaptive enables error control. Without it every step has size Dt.
	Adaptive      bool
	SaveEveryStep bool
	Verbose       bool

	Callbacks callback.Set
	Logger    *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		AbsTol:        dynamo.Scalar(1e-6),
		RelTol:        1e-3,
		MaxSteps:      100000,
		Adaptive:      true,
		SaveEveryStep: true,
	}
}

// Integrator is an adaptive one-step integrator with cubic Hermite dense
// output. It implements dynamo.Integrator for the callbacks it runs.
type Integrator struct {
	dyn    *countingSystem
	method dynamo.Method
	opts   Options
	logger *slog.Logger

	p    dynamo.Params
	tdir float64

	t, tprev  float64
	u, uprev  dynamo.State
	f, fprev  dynamo.State
	hasPrev   bool
	dt        float64
	dtPropose float64

	tstops []float64

	stats  dynamo.Stats
	result *dynamo.Result
}

var _ dynamo.Integrator = (*Integrator)(nil)

func New(dyn dynamo.System, method dynamo.Method, u0 dynamo.State, tspan [2]float64, p dynamo.Params, opts Options) (*Integrator, error) {
	t0, t1 := tspan[0], tspan[1]
	switch {
	case math.IsNaN(t0) || math.IsInf(t0, 0) || math.IsNaN(t1) || math.IsInf(t1, 0) || t0 == t1:
		return nil, fmt.Errorf("%w: [%g, %g]", dynamo.ErrInvalidTimeSpan, t0, t1)
	case len(u0) != dyn.StateDim():
		return nil, fmt.Errorf("%w: initial state has %d components, system expects %d", dynamo.ErrDimensionMismatch, len(u0), dyn.StateDim())
	case !u0.IsValid():
		return nil, dynamo.ErrInvalidState
	case !opts.Adaptive && opts.Dt <= 0:
		return nil, fmt.Errorf("dt must be positive for fixed stepping, got %g", opts.Dt)
	}

	if opts.AbsTol.IsZero() {
		opts.AbsTol = dynamo.Scalar(1e-6)
	}
	if err := opts.AbsTol.Check(len(u0)); err != nil {
		return nil, err
	}
	if opts.RelTol <= 0 {
		opts.RelTol = 1e-3
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 100000
	}
	if opts.DtMin < 0 || opts.DtMax < 0 || (opts.DtMax > 0 && opts.DtMin > opts.DtMax) {
		return nil, fmt.Errorf("invalid step bounds [%g, %g]", opts.DtMin, opts.DtMax)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	in := &Integrator{
		dyn:    &countingSystem{System: dyn},
		method: method,
		opts:   opts,
		logger: logger,
		p:      p,
		tdir:   math.Copysign(1, t1-t0),
		t:      t0,
		u:      u0.Clone(),
		result: &dynamo.Result{Metrics: make(map[string]float64)},
	}
	in.tstops = in.pendingStops(opts.TStops, t1)
	in.f = in.dyn.Derive(in.u, p, t0)

	if opts.Dt > 0 {
		in.dt = in.tdir * opts.Dt
	} else {
		in.dt = in.tdir * initialStep(in.dyn, in.u, in.f, p, t0, opts.AbsTol, opts.RelTol, method.Order(), math.Abs(t1-t0))
	}
	in.dtPropose = in.dt

	in.save()

	if err := opts.Callbacks.Init(in); err != nil {
		return nil, err
	}
	return in, nil
}

// pendingStops keeps the stop times strictly inside the span, sorted in the
// direction of integration, and appends the final time.
func (in *Integrator) pendingStops(stops []float64, t1 float64) []float64 {
	out := make([]float64, 0, len(stops)+1)
	for _, s := range stops {
		if in.tdir*(s-in.t) > 0 && in.tdir*(t1-s) > 0 {
			out = append(out, s)
		}
	}
	out = append(out, t1)
	slices.SortFunc(out, func(a, b float64) int {
		switch {
		case in.tdir*a < in.tdir*b:
			return -1
		case in.tdir*a > in.tdir*b:
			return 1
		}
		return 0
	})
	return slices.Compact(out)
}

func (in *Integrator) Time() float64 { return in.t }
func (in *Integrator) State() dynamo.State { return in.u }
func (in *Integrator) Params() dynamo.Params { return in.p }
func (in *Integrator) Dt() float64 { return in.dt }
func (in *Integrator) SetDt(dt float64) { in.dt = dt }
func (in *Integrator) ProposedDt() float64 { return in.dtPropose }
func (in *Integrator) SetProposedDt(dt float64) { in.dtPropose = dt }
func (in *Integrator) Direction() float64 { return in.tdir }
func (in *Integrator) AbsTol() dynamo.Tolerance { return in.opts.AbsTol }
func (in *Integrator) Verbose() bool { return in.opts.Verbose }
func (in *Integrator) Stats() dynamo.Stats { return in.stats }
func (in *Integrator) Result() *dynamo.Result { return in.result }
func (in *Integrator) Done() bool { return len(in.tstops) == 0 }
func (in *Integrator) Method() dynamo.Method { return in.method }
func (in *Integrator) Logger() *slog.Logger { return in.logger }

func (in *Integrator) ClampDt(dt float64) float64 {
	sign := math.Copysign(1, dt)
	if dt == 0 {
		sign = in.tdir
	}
	mag := math.Abs(dt)
	if in.opts.DtMax > 0 && mag > in.opts.DtMax {
		mag = in.opts.DtMax
	}
	if in.opts.DtMin > 0 && mag < in.opts.DtMin {
		mag = in.opts.DtMin
	}
	dt = sign * mag

	if len(in.tstops) > 0 {
		next := in.tstops[0]
		if in.tdir*(in.t+dt-next) > 0 {
			dt = next - in.t
		}
	}
	return dt
}

// SampleInto evaluates the cubic Hermite interpolant of the last step at t.
// Before the first step it extrapolates linearly from the initial slope.
func (in *Integrator) SampleInto(dst dynamo.State, t float64) {
	if !in.hasPrev {
		for i := range dst {
			dst[i] = in.u[i] + (t-in.t)*in.f[i]
		}
		return
	}

	h := in.t - in.tprev
	theta := (t - in.tprev) / h
	h00 := (1 + 2*theta) * (1 - theta) * (1 - theta)
	h10 := theta * (1 - theta) * (1 - theta)
	h01 := theta * theta * (3 - 2*theta)
	h11 := theta * theta * (theta - 1)
	for i := range dst {
		dst[i] = h00*in.uprev[i] + h10*h*in.fprev[i] + h01*in.u[i] + h11*h*in.f[i]
	}
}

func (in *Integrator) MarkModified() {
	in.f = in.dyn.Derive(in.u, in.p, in.t)
}

// Step advances the integration by one accepted step and runs the callbacks.
// It is a no-op once the final time has been reached.
func (in *Integrator) Step() error {
	if in.Done() {
		return nil
	}

	for {
		if in.stats.Steps+in.stats.Rejected >= in.opts.MaxSteps {
			return in.fail(dynamo.ErrMaxSteps)
		}

		proposal := in.dtPropose
		dt := in.ClampDt(proposal)
		snapped := in.landsOnStop(dt) && math.Abs(dt) < math.Abs(proposal)
		// a callback may shrink the proposal to nothing; only a stop time
		// justifies a step below the floor
		if math.Abs(dt) < in.dtFloor() && !in.landsOnStop(dt) {
			return in.fail(dynamo.ErrStepTooSmall)
		}
		in.dt = dt
		xNew, errEst := in.method.Step(in.dyn, in.u, in.p, in.t, dt)

		if !in.opts.Adaptive {
			if !xNew.IsValid() {
				return in.fail(dynamo.ErrInvalidState)
			}
			in.dtPropose = in.tdir * in.opts.Dt
			in.accept(xNew, dt)
			return in.afterStep()
		}

		errNorm := in.errorNorm(xNew, errEst)
		order := float64(in.method.Order())
		if errNorm > 1 || math.IsNaN(errNorm) || !xNew.IsValid() {
			in.stats.Rejected++
			scale := minScale
			if !math.IsNaN(errNorm) && !math.IsInf(errNorm, 0) {
				scale = math.Max(minScale, safety*math.Pow(errNorm, -1/order))
			}
			in.logger.Debug("step rejected", "t", in.t, "dt", dt, "error", errNorm)
			if math.Abs(dt) <= in.dtFloor() {
				return in.fail(dynamo.ErrStepTooSmall)
			}
			in.dtPropose = dt * scale
			continue
		}

		scale := maxScale
		if errNorm > 0 {
			scale = math.Min(maxScale, safety*math.Pow(errNorm, -1/order))
		}
		in.dtPropose = dt * scale
		if snapped && math.Abs(in.dtPropose) < math.Abs(proposal) {
			// a step cut short by a stop time says nothing about the next one
			in.dtPropose = proposal
		}
		in.accept(xNew, dt)
		return in.afterStep()
	}
}

// Solve steps until the final time.
func (in *Integrator) Solve(ctx context.Context) (*dynamo.Result, error) {
	for !in.Done() {
		select {
		case <-ctx.Done():
			return in.finish(), in.fail(fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err()))
		default:
		}
		if err := in.Step(); err != nil {
			return in.finish(), err
		}
	}
	return in.finish(), nil
}

func (in *Integrator) finish() *dynamo.Result {
	in.stats.Evaluations = in.dyn.calls
	in.result.Stats = in.stats
	return in.result
}

func (in *Integrator) accept(xNew dynamo.State, dt float64) {
	tNew := in.t + dt
	if len(in.tstops) > 0 {
		next := in.tstops[0]
		if math.Abs(tNew-next) <= 4*epsilon*math.Max(1, math.Abs(next)) {
			tNew = next
		}
	}

	in.tprev, in.uprev, in.fprev = in.t, in.u, in.f
	in.t, in.u = tNew, xNew
	in.f = in.dyn.Derive(in.u, in.p, in.t)
	in.hasPrev = true

	for len(in.tstops) > 0 && in.tdir*(in.tstops[0]-in.t) <= 0 {
		in.tstops = in.tstops[1:]
	}

	in.stats.Steps++
	in.stats.LastDt = dt
}

func (in *Integrator) afterStep() error {
	fired, save, err := in.opts.Callbacks.Apply(in)
	in.stats.Callbacks += fired
	if err != nil {
		return in.fail(err)
	}
	if !in.u.IsValid() {
		return in.fail(dynamo.ErrInvalidState)
	}
	if in.opts.SaveEveryStep || save || in.Done() {
		in.save()
	}
	return nil
}

func (in *Integrator) save() {
	in.result.States = append(in.result.States, in.u.Clone())
	in.result.Times = append(in.result.Times, in.t)
}

func (in *Integrator) fail(err error) error {
	return &dynamo.SimulationError{
		Step:    in.stats.Steps,
		Time:    in.t,
		State:   in.u.Clone(),
		Wrapped: err,
	}
}

func (in *Integrator) errorNorm(xNew, errEst dynamo.State) float64 {
	errMax := 0.0
	for i := range errEst {
		sc := in.opts.AbsTol.At(i) + in.opts.RelTol*math.Max(math.Abs(in.u[i]), math.Abs(xNew[i]))
		errMax = math.Max(errMax, math.Abs(errEst[i])/sc)
	}
	return errMax
}

func (in *Integrator) landsOnStop(dt float64) bool {
	return dt != 0 && len(in.tstops) > 0 && in.t+dt == in.tstops[0]
}

func (in *Integrator) dtFloor() float64 {
	return math.Max(in.opts.DtMin, 16*epsilon*math.Max(1, math.Abs(in.t)))
}

var epsilon = math.Nextafter(1, 2) - 1

type countingSystem struct {
	dynamo.System
	calls int
}

func (c *countingSystem) Derive(x dynamo.State, p dynamo.Params, t float64) dynamo.State {
	c.calls++
	return c.System.Derive(x, p, t)
}
