package manifold

import (
	"log/slog"

	"github.com/san-kum/odeguard/internal/dynamo"
)

// Method selects the finite difference scheme for the Jacobian.
type Method int

const (
	// Forward uses first order forward differences.
	Forward Method = iota
	// Central uses second order central differences.
	Central
)

// JacobianFunc writes the m×n Jacobian of the residual at u into jac, row
// major: jac[j*n+i] = ∂g_j/∂u_i.
type JacobianFunc func(jac []float64, u dynamo.State, p dynamo.Params, t float64) error

type Option func(*Projection)

func WithMaxIterations(n int) Option {
	return func(p *Projection) { p.maxIter = n }
}

// WithAbsTol sets the residual magnitude below which the solve stops.
func WithAbsTol(tol float64) Option {
	return func(p *Projection) { p.abstol = tol }
}

func WithMethod(m Method) Option {
	return func(p *Projection) { p.method = m }
}

// WithJacobian replaces finite differences with an analytic Jacobian.
func WithJacobian(jac JacobianFunc) Option {
	return func(p *Projection) { p.jac = jac }
}

// WithResidualSize fixes the number of residual components. The default is
// the state dimension.
func WithResidualSize(m int) Option {
	return func(p *Projection) { p.m = m }
}

// WithStrict turns a failure to converge into ErrNotConverged.
func WithStrict() Option {
	return func(p *Projection) { p.strict = true }
}

func WithSave(save bool) Option {
	return func(p *Projection) { p.save = save }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Projection) { p.logger = logger }
}

func WithObserver(fn func(Result)) Option {
	return func(p *Projection) { p.observer = fn }
}
