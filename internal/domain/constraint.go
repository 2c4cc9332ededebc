package domain

import (
	"math"

	"github.com/san-kum/odeguard/internal/dynamo"
)

// Constraint is the domain a guard keeps the integration in.
type Constraint interface {
	Kind() string

	// Sanitize corrects the integrator's current state in place and reports
	// whether it changed anything.
	Sanitize(integ dynamo.Integrator) bool

	// Accept reports whether the trial state u at time t lies inside the
	// domain under tol.
	Accept(u dynamo.State, p dynamo.Params, t float64, tol dynamo.Tolerance) (bool, error)

	// Scratch returns the buffer trial states are sampled into, sized like u.
	Scratch(u dynamo.State) dynamo.State
}

// Positive is the non-negative orthant.
type Positive struct {
	scratch dynamo.State
}

// NewPositiveConstraint returns the non-negative orthant. scratch may be nil.
func NewPositiveConstraint(scratch dynamo.State) *Positive {
	return &Positive{scratch: scratch}
}

func (c *Positive) Kind() string { return "positive" }

func (c *Positive) Sanitize(integ dynamo.Integrator) bool {
	modified := ClampNegative(integ.State())
	if modified {
		integ.MarkModified()
	}
	return modified
}

// ClampNegative sets every negative component of u to zero and reports
// whether any component changed.
func ClampNegative(u dynamo.State) bool {
	modified := false
	for i, v := range u {
		if v < 0 {
			u[i] = 0
			modified = true
		}
	}
	return modified
}

func (c *Positive) Accept(u dynamo.State, _ dynamo.Params, _ float64, tol dynamo.Tolerance) (bool, error) {
	if err := tol.Check(len(u)); err != nil {
		return false, err
	}
	for i, v := range u {
		if !(v+tol.At(i) > 0) {
			return false, nil
		}
	}
	return true, nil
}

func (c *Positive) Scratch(u dynamo.State) dynamo.State {
	c.scratch = fit(c.scratch, len(u))
	return c.scratch
}

// General is the set where every residual component satisfies |g_i(u)| < tol_i.
type General struct {
	g       dynamo.Residual
	resid   dynamo.State
	scratch dynamo.State

	// ownResid is set when the residual buffer follows the state dimension.
	ownResid bool
}

// NewGeneralConstraint returns the set |g(u)| < tol. Nil buffers are sized
// from the state.
func NewGeneralConstraint(g dynamo.Residual, scratch, resid dynamo.State) (*General, error) {
	if g == nil {
		return nil, ErrNilResidual
	}
	return &General{g: g, scratch: scratch, resid: resid, ownResid: resid == nil}, nil
}

func (c *General) Kind() string { return "general" }

func (c *General) Residual() dynamo.Residual { return c.g }

// Sanitize is a no-op; exact correction is the projection's job.
func (c *General) Sanitize(dynamo.Integrator) bool { return false }

func (c *General) Accept(u dynamo.State, p dynamo.Params, t float64, tol dynamo.Tolerance) (bool, error) {
	resid, err := c.Evaluate(u, p, t)
	if err != nil {
		return false, err
	}
	if err := tol.Check(len(resid)); err != nil {
		return false, err
	}
	for i, r := range resid {
		if !(math.Abs(r) < tol.At(i)) {
			return false, nil
		}
	}
	return true, nil
}

// Evaluate overwrites the residual buffer with g(u) or g(u, p, t) and returns
// it. The buffer is reused across calls.
func (c *General) Evaluate(u dynamo.State, p dynamo.Params, t float64) (dynamo.State, error) {
	if c.ownResid {
		c.resid = fit(c.resid, len(u))
	}
	if err := c.g.Eval(c.resid, u, p, t); err != nil {
		return nil, err
	}
	return c.resid, nil
}

func (c *General) Scratch(u dynamo.State) dynamo.State {
	c.scratch = fit(c.scratch, len(u))
	if c.ownResid {
		c.resid = fit(c.resid, len(u))
	}
	return c.scratch
}

func fit(buf dynamo.State, n int) dynamo.State {
	if len(buf) != n {
		return make(dynamo.State, n)
	}
	return buf
}
