package sim

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/odeguard/internal/config"
)

// Sweep runs every configuration concurrently, at most parallelism at a
// time (GOMAXPROCS when zero). Runs[i] belongs to cfgs[i]. A run whose
// integration fails keeps its error in Run.Err; a configuration that cannot
// be built cancels the sweep and is returned as the error.
func (s *Simulator) Sweep(ctx context.Context, cfgs []*config.Config, parallelism int) ([]*Run, error) {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	runs := make([]*Run, len(cfgs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, cfg := range cfgs {
		i, cfg := i, cfg
		g.Go(func() error {
			run, err := s.Run(ctx, cfg)
			if run == nil {
				return err
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}

// ScaleFactorSweep copies base once per scale factor.
func ScaleFactorSweep(base *config.Config, factors []float64) []*config.Config {
	cfgs := make([]*config.Config, len(factors))
	for i, f := range factors {
		c := base.Clone()
		c.Guard.ScaleFactor = f
		cfgs[i] = c
	}
	return cfgs
}
