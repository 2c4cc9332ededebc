// Package manifold projects an integrator's state onto the manifold
// g(u) = 0 after each step.
//
// The projection solves the underdetermined system g(u + Δ) = 0 for the
// smallest correction Δ with damped Gauss-Newton iterations
//
//	Δ = -Jᵀ (J Jᵀ + λI)⁻¹ g(u)
//
// where J is the Jacobian of g, either supplied or estimated by finite
// differences.
package manifold

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/odeguard/internal/callback"
	"github.com/san-kum/odeguard/internal/dynamo"
)

var (
	ErrNotConverged = errors.New("manifold: projection did not converge")
	ErrSingular     = errors.New("manifold: normal equations are not positive definite")
	ErrNilResidual  = errors.New("manifold: residual function is required")
)

var (
	sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
	cubeEps = math.Pow(math.Nextafter(1, 2)-1, 1.0/3)
)

const (
	damping      = 1e-12
	maxBacktrack = 6
)

// Result summarizes one projection.
type Result struct {
	Iterations int
	Residual   float64
	Converged  bool
}

type Projection struct {
	g        dynamo.Residual
	jac      JacobianFunc
	method   Method
	m        int
	maxIter  int
	abstol   float64
	strict   bool
	save     bool
	logger   *slog.Logger
	observer func(Result)

	r, rt, trial dynamo.State
	fx           dynamo.State
	J, A         []float64
	y, delta     []float64
}

func New(g dynamo.Residual, opts ...Option) (*Projection, error) {
	if g == nil {
		return nil, ErrNilResidual
	}
	p := &Projection{
		g:       g,
		maxIter: 10,
		abstol:  1e-10,
		method:  Forward,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	switch {
	case p.maxIter <= 0:
		return nil, fmt.Errorf("max iterations must be positive, got %d", p.maxIter)
	case p.abstol <= 0:
		return nil, fmt.Errorf("tolerance must be positive, got %g", p.abstol)
	case p.method != Forward && p.method != Central:
		return nil, errors.New("unknown finite difference method")
	case p.m < 0:
		return nil, fmt.Errorf("residual size must not be negative, got %d", p.m)
	}
	return p, nil
}

// Callback returns a callback that projects the state after every step.
func (p *Projection) Callback() *callback.Discrete {
	return &callback.Discrete{
		Name:      "manifold_projection",
		Affect:    p.Affect,
		SaveAfter: p.save,
	}
}

func (p *Projection) Affect(integ dynamo.Integrator) error {
	res, err := p.Project(integ.State(), integ.Params(), integ.Time())
	if res.Iterations > 0 {
		integ.MarkModified()
	}
	if p.observer != nil {
		p.observer(res)
	}
	if err != nil {
		return err
	}
	if !res.Converged {
		if p.strict {
			return fmt.Errorf("%w: residual %g after %d iterations", ErrNotConverged, res.Residual, res.Iterations)
		}
		if integ.Verbose() {
			p.logger.Warn("manifold projection did not converge",
				"t", integ.Time(), "residual", res.Residual, "iterations", res.Iterations)
		}
	}
	return nil
}

// Project moves u in place towards g(u) = 0.
func (p *Projection) Project(u dynamo.State, params dynamo.Params, t float64) (Result, error) {
	n := len(u)
	m := p.m
	if m == 0 {
		m = n
	}
	p.workspace(n, m)

	var res Result
	if err := p.g.Eval(p.r, u, params, t); err != nil {
		return res, err
	}
	norm := maxAbs(p.r)

	for {
		res.Residual = norm
		if norm <= p.abstol {
			res.Converged = true
			return res, nil
		}
		if res.Iterations == p.maxIter {
			return res, nil
		}

		if err := p.jacobian(u, params, t); err != nil {
			return res, err
		}
		if err := p.step(n, m); err != nil {
			return res, err
		}

		// backtrack while the correction makes the residual worse
		alpha := 1.0
		var trialNorm float64
		for k := 0; ; k++ {
			for i := range u {
				p.trial[i] = u[i] + alpha*p.delta[i]
			}
			if err := p.g.Eval(p.rt, p.trial, params, t); err != nil {
				return res, err
			}
			trialNorm = maxAbs(p.rt)
			if trialNorm < norm {
				break
			}
			if k == maxBacktrack {
				return res, nil
			}
			alpha /= 2
		}

		copy(u, p.trial)
		copy(p.r, p.rt)
		norm = trialNorm
		res.Iterations++
	}
}

func (p *Projection) workspace(n, m int) {
	if len(p.trial) == n && len(p.r) == m {
		return
	}
	p.r = make(dynamo.State, m)
	p.rt = make(dynamo.State, m)
	p.fx = make(dynamo.State, m)
	p.trial = make(dynamo.State, n)
	p.J = make([]float64, m*n)
	p.A = make([]float64, m*m)
	p.y = make([]float64, m)
	p.delta = make([]float64, n)
}

func (p *Projection) jacobian(u dynamo.State, params dynamo.Params, t float64) error {
	if p.jac != nil {
		return p.jac(p.J, u, params, t)
	}

	n, m := len(u), len(p.r)
	eps := sqrtEps
	if p.method == Central {
		eps = cubeEps
	}

	for i := 0; i < n; i++ {
		x := u[i]
		h := math.Copysign(eps, x) * math.Max(1, math.Abs(x))
		h = (x + h) - x

		switch p.method {
		case Central:
			u[i] = x - h
			if err := p.g.Eval(p.rt, u, params, t); err != nil {
				u[i] = x
				return err
			}
			u[i] = x + h
			if err := p.g.Eval(p.fx, u, params, t); err != nil {
				u[i] = x
				return err
			}
			for j := 0; j < m; j++ {
				p.J[i+j*n] = (p.fx[j] - p.rt[j]) / (2 * h)
			}
		default:
			u[i] = x + h
			if err := p.g.Eval(p.fx, u, params, t); err != nil {
				u[i] = x
				return err
			}
			for j := 0; j < m; j++ {
				p.J[i+j*n] = (p.fx[j] - p.r[j]) / h
			}
		}
		u[i] = x
	}
	return nil
}

// step solves (J Jᵀ + λI) y = r by Cholesky and sets delta = -Jᵀ y.
func (p *Projection) step(n, m int) error {
	J, A := p.J, p.A

	trace := 0.0
	for a := 0; a < m; a++ {
		for b := 0; b <= a; b++ {
			s := 0.0
			for i := 0; i < n; i++ {
				s += J[a*n+i] * J[b*n+i]
			}
			A[a*m+b] = s
			A[b*m+a] = s
		}
		trace += A[a*m+a]
	}
	lambda := damping * math.Max(1, trace/float64(m))
	for a := 0; a < m; a++ {
		A[a*m+a] += lambda
	}

	if err := cholesky(A, m); err != nil {
		return err
	}
	copy(p.y, p.r)
	cholSolve(A, m, p.y)

	for i := 0; i < n; i++ {
		s := 0.0
		for a := 0; a < m; a++ {
			s += J[a*n+i] * p.y[a]
		}
		p.delta[i] = -s
	}
	return nil
}

// cholesky factors the symmetric positive definite m×m matrix a in place into
// its lower triangle.
func cholesky(a []float64, m int) error {
	for j := 0; j < m; j++ {
		d := a[j*m+j]
		for k := 0; k < j; k++ {
			d -= a[j*m+k] * a[j*m+k]
		}
		if !(d > 0) {
			return ErrSingular
		}
		d = math.Sqrt(d)
		a[j*m+j] = d
		for i := j + 1; i < m; i++ {
			s := a[i*m+j]
			for k := 0; k < j; k++ {
				s -= a[i*m+k] * a[j*m+k]
			}
			a[i*m+j] = s / d
		}
	}
	return nil
}

func cholSolve(l []float64, m int, b []float64) {
	for i := 0; i < m; i++ {
		s := b[i]
		for k := 0; k < i; k++ {
			s -= l[i*m+k] * b[k]
		}
		b[i] = s / l[i*m+i]
	}
	for i := m - 1; i >= 0; i-- {
		s := b[i]
		for k := i + 1; k < m; k++ {
			s -= l[k*m+i] * b[k]
		}
		b[i] = s / l[i*m+i]
	}
}

func maxAbs(v dynamo.State) float64 {
	m := 0.0
	for _, x := range v {
		if math.IsNaN(x) {
			return math.Inf(1)
		}
		m = math.Max(m, math.Abs(x))
	}
	return m
}
