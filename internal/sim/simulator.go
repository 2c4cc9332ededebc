package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/san-kum/odeguard/internal/callback"
	"github.com/san-kum/odeguard/internal/config"
	"github.com/san-kum/odeguard/internal/domain"
	"github.com/san-kum/odeguard/internal/dynamo"
	"github.com/san-kum/odeguard/internal/integrators"
	"github.com/san-kum/odeguard/internal/logging"
	"github.com/san-kum/odeguard/internal/manifold"
	"github.com/san-kum/odeguard/internal/metrics"
	"github.com/san-kum/odeguard/internal/problems"
)

// Simulator builds and runs guarded integrations. It holds no per-run state,
// so one Simulator may run many configurations concurrently as long as the
// observers added to it are safe for concurrent use.
type Simulator struct {
	logger    *slog.Logger
	metrics   *metrics.GuardMetrics
	observers observers
}

type Option func(*Simulator)

func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithGuardMetrics records every run's guard activity in m.
func WithGuardMetrics(m *metrics.GuardMetrics) Option {
	return func(s *Simulator) { s.metrics = m }
}

func New(opts ...Option) *Simulator {
	s := &Simulator{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) AddObserver(o domain.Observer) { s.observers = append(s.observers, o) }

// Run integrates one configuration. Setup failures return a nil Run. When
// the integration itself fails the Run is returned with the partial result
// alongside the error.
func (s *Simulator) Run(ctx context.Context, cfg *config.Config) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	prob, err := resolveProblem(cfg)
	if err != nil {
		return nil, err
	}
	method, err := integrators.NewMethod(cfg.Method)
	if err != nil {
		return nil, err
	}
	dom := prob.Domain
	if cfg.Guard.Domain != "" {
		if dom, err = problems.ParseDomain(cfg.Guard.Domain); err != nil {
			return nil, err
		}
	}

	stats := &statsObserver{}
	guards, err := s.guards(prob, dom, cfg, stats)
	if err != nil {
		return nil, err
	}

	ms := []metrics.Metric{metrics.NewMinComponent()}
	if prob.Residual != nil {
		ms = append(ms, metrics.NewMaxResidual(prob.Residual, prob.ResidualSize))
	}
	if prob.Invariant != nil {
		ms = append(ms, metrics.NewInvariantDrift(prob.Invariant))
	}

	opts := integrators.Options{
		Dt:            cfg.Dt,
		AbsTol:        config.Tolerance(cfg.AbsTol),
		RelTol:        cfg.RelTol,
		DtMin:         cfg.DtMin,
		DtMax:         cfg.DtMax,
		TStops:        cfg.TStops,
		MaxSteps:      cfg.MaxSteps,
		Adaptive:      !cfg.Fixed,
		SaveEveryStep: cfg.SaveAll,
		Verbose:       cfg.Verbose,
		Callbacks:     callback.Merge(guards, callback.Set{metrics.Callback(ms...)}),
		Logger:        s.logger,
	}

	in, err := integrators.New(prob.System, method, prob.State0, prob.Span, prob.Params, opts)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With("problem", prob.Name, "method", method.Name(), "domain", string(dom))
	logger.Debug("starting run", "tspan", prob.Span, "abstol", opts.AbsTol.String())

	res, runErr := in.Solve(ctx)
	metrics.Collect(res.Metrics, ms...)

	run := &Run{
		Config:  cfg,
		Problem: prob,
		Domain:  dom,
		Method:  method.Name(),
		Result:  res,
		Guard:   stats.snapshot(),
		Err:     runErr,
	}
	if runErr != nil {
		logger.Warn("run failed", "error", runErr, "steps", res.Stats.Steps)
		return run, runErr
	}
	logger.Info("run finished",
		"steps", res.Stats.Steps,
		"rejected", res.Stats.Rejected,
		"guard_shrinks", run.Guard.ShrinkIterations,
		"stagnations", run.Guard.Stagnations)
	return run, nil
}

// guards builds fresh domain callbacks for one run. Constraint instances
// carry scratch buffers and are never shared between runs.
func (s *Simulator) guards(prob *problems.Problem, dom problems.Domain, cfg *config.Config, stats *statsObserver) (callback.Set, error) {
	obs := append(observers{stats}, s.observers...)
	if s.metrics != nil {
		obs = append(obs, s.metrics)
	}

	opts := []domain.Option{
		domain.WithAbsTol(config.Tolerance(cfg.Guard.AbsTol)),
		domain.WithSave(cfg.Guard.Save),
		domain.WithStagnationTolerance(cfg.Guard.StagnationRTol),
		domain.WithObserver(obs),
		domain.WithLogger(s.logger),
	}
	if cfg.Guard.ScaleFactor != 0 {
		opts = append(opts, domain.WithScaleFactor(cfg.Guard.ScaleFactor))
	}

	switch dom {
	case problems.DomainNone:
		return nil, nil
	case problems.DomainPositive:
		cb, err := domain.NewPositive(opts...)
		if err != nil {
			return nil, err
		}
		return callback.Set{cb}, nil
	case problems.DomainGeneral:
		if prob.Residual == nil {
			return nil, fmt.Errorf("problem %s has no residual for a general domain", prob.Name)
		}
		proj, err := projectionOptions(cfg.Guard.Projection, prob.ResidualSize, stats, s.metrics)
		if err != nil {
			return nil, err
		}
		if prob.ResidualSize > 0 {
			opts = append(opts, domain.WithResidualBuffer(make(dynamo.State, prob.ResidualSize)))
		}
		opts = append(opts, domain.WithProjection(proj...))
		return domain.NewGeneral(prob.Residual, opts...)
	}
	return nil, fmt.Errorf("unknown domain %q", dom)
}

func projectionOptions(pc config.ProjectionConfig, size int, stats *statsObserver, gm *metrics.GuardMetrics) ([]manifold.Option, error) {
	var opts []manifold.Option
	if pc.MaxIterations > 0 {
		opts = append(opts, manifold.WithMaxIterations(pc.MaxIterations))
	}
	if pc.AbsTol > 0 {
		opts = append(opts, manifold.WithAbsTol(pc.AbsTol))
	}
	switch strings.ToLower(pc.Method) {
	case "", "forward":
	case "central":
		opts = append(opts, manifold.WithMethod(manifold.Central))
	default:
		return nil, fmt.Errorf("unknown finite difference method %q", pc.Method)
	}
	if pc.Strict {
		opts = append(opts, manifold.WithStrict())
	}
	if size > 0 {
		opts = append(opts, manifold.WithResidualSize(size))
	}
	opts = append(opts, manifold.WithObserver(func(r manifold.Result) {
		stats.ObserveProjection(r)
		if gm != nil {
			gm.ObserveProjection(r)
		}
	}))
	return opts, nil
}

// resolveProblem applies the configuration's overrides to a fresh problem.
func resolveProblem(cfg *config.Config) (*problems.Problem, error) {
	prob, err := problems.Get(cfg.Problem)
	if err != nil {
		return nil, err
	}
	var errs []error
	for name, v := range cfg.Params {
		errs = append(errs, prob.SetParam(name, v))
	}
	if len(cfg.Init) > 0 {
		prob.State0 = dynamo.State(cfg.Init).Clone()
	}
	if len(cfg.TSpan) == 2 {
		prob.Span = [2]float64{cfg.TSpan[0], cfg.TSpan[1]}
	}
	errs = append(errs, prob.Validate())
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return prob, nil
}
