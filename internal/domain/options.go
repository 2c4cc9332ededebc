package domain

import (
	"log/slog"

	"github.com/san-kum/odeguard/internal/dynamo"
	"github.com/san-kum/odeguard/internal/manifold"
)

const DefaultScaleFactor = 0.5

type settings struct {
	abstol         dynamo.Tolerance
	scalefactor    float64
	scratch        dynamo.State
	resid          dynamo.State
	save           bool
	stagnationRTol float64
	observer       Observer
	logger         *slog.Logger
	projection     []manifold.Option
}

func defaults() settings {
	return settings{
		scalefactor: DefaultScaleFactor,
		save:        true,
		logger:      slog.Default(),
	}
}

type Option func(*settings)

// WithAbsTol overrides the integrator's absolute tolerance for the
// acceptance test.
func WithAbsTol(tol dynamo.Tolerance) Option {
	return func(s *settings) { s.abstol = tol }
}

// WithScaleFactor sets the ratio a rejected trial step is multiplied by.
func WithScaleFactor(f float64) Option {
	return func(s *settings) { s.scalefactor = f }
}

// WithScratch supplies the buffer trial states are sampled into.
func WithScratch(buf dynamo.State) Option {
	return func(s *settings) { s.scratch = buf }
}

// WithResidualBuffer supplies the residual buffer of a General domain. Its
// length fixes the number of residual components.
func WithResidualBuffer(buf dynamo.State) Option {
	return func(s *settings) { s.resid = buf }
}

// WithSave controls whether steps after which the guard ran are saved.
func WithSave(save bool) Option {
	return func(s *settings) { s.save = save }
}

// WithStagnationTolerance makes the stagnation check relative: the shrink
// loop stops once |dt - prev| <= rtol*|prev|. Zero means exact equality.
func WithStagnationTolerance(rtol float64) Option {
	return func(s *settings) { s.stagnationRTol = rtol }
}

func WithObserver(o Observer) Option {
	return func(s *settings) { s.observer = o }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithProjection forwards options to the exact projection installed by
// NewGeneral.
func WithProjection(opts ...manifold.Option) Option {
	return func(s *settings) { s.projection = append(s.projection, opts...) }
}
