package domain

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/odeguard/internal/callback"
	"github.com/san-kum/odeguard/internal/dynamo"
	"github.com/san-kum/odeguard/internal/manifold"
)

// nextStepSafety scales the accepted probe step when the guard had to shrink.
const nextStepSafety = 0.9

// Guard revises the integrator's proposed next step so that the state it
// leads to stays inside a Constraint.
type Guard struct {
	constraint     Constraint
	configured     dynamo.Tolerance
	abstol         dynamo.Tolerance
	scalefactor    float64
	stagnationRTol float64
	save           bool
	observer       Observer
	logger         *slog.Logger

	// bound is the integrator abstol was resolved against.
	bound dynamo.Integrator
}

// NewGuard returns a guard that keeps the states an integrator steps to inside c.
func NewGuard(c Constraint, opts ...Option) (*Guard, error) {
	s := defaults()
	for _, opt := range opts {
		opt(&s)
	}
	return newGuard(c, s)
}

func newGuard(c Constraint, s settings) (*Guard, error) {
	if !(s.scalefactor > 0 && s.scalefactor < 1) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidScaleFactor, s.scalefactor)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return &Guard{
		constraint:     c,
		configured:     s.abstol,
		scalefactor:    s.scalefactor,
		stagnationRTol: s.stagnationRTol,
		save:           s.save,
		observer:       s.observer,
		logger:         s.logger,
	}, nil
}

// NewPositive returns a callback that keeps every state component
// non-negative.
func NewPositive(opts ...Option) (*callback.Discrete, error) {
	s := defaults()
	for _, opt := range opts {
		opt(&s)
	}
	g, err := newGuard(NewPositiveConstraint(s.scratch), s)
	if err != nil {
		return nil, err
	}
	return g.Callback(), nil
}

// NewGeneral returns the exact projection onto g(u) = 0 followed by a guard
// that shrinks the next step while |g| would exceed the tolerance.
func NewGeneral(g dynamo.Residual, opts ...Option) (callback.Set, error) {
	s := defaults()
	for _, opt := range opts {
		opt(&s)
	}
	c, err := NewGeneralConstraint(g, s.scratch, s.resid)
	if err != nil {
		return nil, err
	}
	guard, err := newGuard(c, s)
	if err != nil {
		return nil, err
	}
	proj, err := manifold.New(g, append([]manifold.Option{manifold.WithLogger(s.logger)}, s.projection...)...)
	if err != nil {
		return nil, err
	}
	return callback.Set{proj.Callback(), guard.Callback()}, nil
}

func (g *Guard) Constraint() Constraint { return g.constraint }

// Callback wraps the guard in a callback that fires after every step.
func (g *Guard) Callback() *callback.Discrete {
	return &callback.Discrete{
		Name:       g.constraint.Kind() + "_domain",
		Initialize: g.Initialize,
		Affect:     g.Affect,
		SaveAfter:  g.save,
	}
}

// Initialize resolves the tolerance against the integrator's default and
// allocates the scratch buffers. Affect calls it for an integrator the guard
// has not seen, so one guard may serve several integrators in turn but never
// at the same time.
func (g *Guard) Initialize(integ dynamo.Integrator) error {
	g.abstol = g.configured.Or(integ.AbsTol())
	g.constraint.Scratch(integ.State())
	g.bound = integ
	return nil
}

func (g *Guard) Affect(integ dynamo.Integrator) error {
	if g.bound != integ {
		if err := g.Initialize(integ); err != nil {
			return err
		}
	}

	dtCache := integ.Dt()
	sanitized := g.constraint.Sanitize(integ)

	out, err := g.shrink(integ, dtCache)
	out.Sanitized = sanitized
	if g.observer != nil {
		g.observer.ObserveGuard(out)
	}
	return err
}

// shrink probes the proposed next step and shrinks it by the scale factor
// until the probed state is accepted, the step loses its direction, or the
// clamped step size stops changing. It leaves the revised proposal in the
// integrator and restores the active step to dtCache.
func (g *Guard) shrink(integ dynamo.Integrator, dtCache float64) (Outcome, error) {
	out := Outcome{Kind: g.constraint.Kind(), Time: integ.Time()}
	defer integ.SetDt(dtCache)

	t := integ.Time()
	tdir := integ.Direction()
	p := integ.Params()

	integ.SetDt(integ.ProposedDt())
	dt := integ.ClampDt(integ.Dt())
	integ.SetDt(dt)
	trial := t + dt

	u := g.constraint.Scratch(integ.State())
	for tdir*dt > 0 {
		integ.SampleInto(u, trial)
		ok, err := g.constraint.Accept(u, p, trial, g.abstol)
		if err != nil {
			return out, err
		}
		if ok {
			out.Accepted = true
			break
		}

		prev := dt
		dt = integ.ClampDt(dt * g.scalefactor)
		integ.SetDt(dt)
		trial = t + dt
		out.Iterations++

		if g.stagnated(prev, dt) {
			out.Stagnated = true
			if integ.Verbose() {
				g.logger.Warn("could not restrict state to domain: step size no longer changes",
					"domain", out.Kind, "t", t, "dt", dt, "iterations", out.Iterations)
			}
			break
		}
	}

	next := dt
	if out.Iterations > 0 {
		next = nextStepSafety * dt
	}
	integ.SetProposedDt(next)
	out.ProposedDt = next
	return out, nil
}

func (g *Guard) stagnated(prev, dt float64) bool {
	if g.stagnationRTol == 0 {
		return dt == prev
	}
	return math.Abs(dt-prev) <= g.stagnationRTol*math.Abs(prev)
}
