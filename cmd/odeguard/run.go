package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/san-kum/odeguard/internal/config"
	"github.com/san-kum/odeguard/internal/metrics"
	"github.com/san-kum/odeguard/internal/sim"
	"github.com/san-kum/odeguard/internal/storage"
	"github.com/san-kum/odeguard/internal/viz"
)

// runFlags holds the flags shared by run and sweep. Only flags the user set
// override the preset and config file.
type runFlags struct {
	configFile string
	preset     string

	method         string
	dt             float64
	tspan          []float64
	abstol         []float64
	reltol         float64
	dtmin, dtmax   float64
	tstops         []float64
	maxSteps       int
	fixed          bool
	verbose        bool
	init           []float64
	params         map[string]string
	domain         string
	guardAbstol    []float64
	scaleFactor    float64
	stagnationRTol float64
	strict         bool
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.configFile, "config", "", "config file path (yaml)")
	fs.StringVar(&f.preset, "preset", "", "use preset configuration")
	fs.StringVar(&f.method, "method", config.DefaultMethod, "integration method (euler, rk4, rk45)")
	fs.Float64Var(&f.dt, "dt", 0, "initial step size, or the step size with --fixed (0 picks one)")
	fs.Float64SliceVar(&f.tspan, "tspan", nil, "time span t0,t1")
	fs.Float64SliceVar(&f.abstol, "abstol", nil, "absolute tolerance, one value or one per component")
	fs.Float64Var(&f.reltol, "reltol", config.DefaultRelTol, "relative tolerance")
	fs.Float64Var(&f.dtmin, "dtmin", 0, "minimum step size")
	fs.Float64Var(&f.dtmax, "dtmax", 0, "maximum step size")
	fs.Float64SliceVar(&f.tstops, "tstops", nil, "times the integrator must land on")
	fs.IntVar(&f.maxSteps, "max-steps", config.DefaultMaxSteps, "maximum number of attempted steps")
	fs.BoolVar(&f.fixed, "fixed", false, "disable error control")
	fs.BoolVar(&f.verbose, "verbose", false, "warn when the guard cannot restrict the state")
	fs.Float64SliceVar(&f.init, "init", nil, "initial state")
	fs.StringToStringVar(&f.params, "param", nil, "problem parameters name=value")
	fs.StringVar(&f.domain, "domain", "", "domain guard (none, positive, general); default is the problem's")
	fs.Float64SliceVar(&f.guardAbstol, "guard-abstol", nil, "guard tolerance, defaults to --abstol")
	fs.Float64Var(&f.scaleFactor, "scalefactor", config.DefaultScaleFactor, "step shrink factor in (0, 1)")
	fs.Float64Var(&f.stagnationRTol, "stagnation-rtol", 0, "relative step change treated as stagnation (0 means exact)")
	fs.BoolVar(&f.strict, "strict", false, "fail when the manifold projection does not converge")
}

// resolve layers defaults, preset, config file and changed flags.
func (f *runFlags) resolve(fs *pflag.FlagSet, problem string, envVerbose bool) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Problem = problem

	if f.preset != "" {
		p := config.GetPreset(problem, f.preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", f.preset, config.ListPresets(problem))
		}
		cfg = p
	}
	if f.configFile != "" {
		loaded, err := config.Load(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if loaded.Problem != "" && loaded.Problem != problem {
			return nil, fmt.Errorf("config %s is for problem %s, not %s", f.configFile, loaded.Problem, problem)
		}
		cfg = loaded
		cfg.Problem = problem
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("method", func() { cfg.Method = f.method })
	set("dt", func() { cfg.Dt = f.dt })
	set("tspan", func() { cfg.TSpan = f.tspan })
	set("abstol", func() { cfg.AbsTol = f.abstol })
	set("reltol", func() { cfg.RelTol = f.reltol })
	set("dtmin", func() { cfg.DtMin = f.dtmin })
	set("dtmax", func() { cfg.DtMax = f.dtmax })
	set("tstops", func() { cfg.TStops = f.tstops })
	set("max-steps", func() { cfg.MaxSteps = f.maxSteps })
	set("fixed", func() { cfg.Fixed = f.fixed })
	set("verbose", func() { cfg.Verbose = f.verbose })
	set("init", func() { cfg.Init = f.init })
	set("domain", func() { cfg.Guard.Domain = f.domain })
	set("guard-abstol", func() { cfg.Guard.AbsTol = f.guardAbstol })
	set("scalefactor", func() { cfg.Guard.ScaleFactor = f.scaleFactor })
	set("stagnation-rtol", func() { cfg.Guard.StagnationRTol = f.stagnationRTol })
	set("strict", func() { cfg.Guard.Projection.Strict = f.strict })
	if envVerbose && !fs.Changed("verbose") {
		cfg.Verbose = true
	}

	if len(f.params) > 0 && cfg.Params == nil {
		cfg.Params = make(map[string]float64, len(f.params))
	}
	for name, s := range f.params {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", name, err)
		}
		cfg.Params[name] = v
	}
	return cfg, cfg.Validate()
}

func (a *app) runCmd() *cobra.Command {
	var (
		flags       runFlags
		showMetrics bool
		noSave      bool
		plot        bool
	)
	cmd := &cobra.Command{
		Use:   "run [problem]",
		Short: "integrate a problem with its domain guard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve(cmd.Flags(), args[0], a.env.Verbose)
			if err != nil {
				return err
			}

			gm := metrics.NewGuardMetrics()
			s := sim.New(sim.WithLogger(a.logger), sim.WithGuardMetrics(gm))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			run, runErr := s.Run(ctx, cfg)
			if run == nil {
				return runErr
			}

			out := cmd.OutOrStdout()
			title := fmt.Sprintf("%s · %s · %s", run.Problem.Name, run.Method, run.Domain)
			fmt.Fprintln(out, viz.Summary(title, run.Result.Stats, run.Guard, run.Result.Metrics))

			if plot {
				graph, err := viz.Plot(run.Result.States, run.Result.Times, viz.PlotOptions{Caption: run.Problem.Name})
				if err != nil {
					return err
				}
				fmt.Fprintln(out, graph)
			}
			if showMetrics {
				if err := gm.WriteText(out); err != nil {
					return err
				}
			}
			if !noSave {
				st := storage.New(a.dataDir)
				if err := st.Init(); err != nil {
					return err
				}
				id, err := st.Save(run)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "saved: %s\n", id)
			}
			return runErr
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print guard metrics in prometheus text format")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	cmd.Flags().BoolVar(&plot, "plot", false, "plot the trajectory")
	return cmd
}

func (a *app) sweepCmd() *cobra.Command {
	var (
		flags    runFlags
		factors  []float64
		parallel int
		save     bool
	)
	cmd := &cobra.Command{
		Use:   "sweep [problem]",
		Short: "compare guard scale factors on one problem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := flags.resolve(cmd.Flags(), args[0], a.env.Verbose)
			if err != nil {
				return err
			}
			cfgs := sim.ScaleFactorSweep(base, factors)
			for _, c := range cfgs {
				if err := c.Validate(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			runs, err := sim.New(sim.WithLogger(a.logger)).Sweep(ctx, cfgs, parallel)
			if err != nil {
				return err
			}

			var st *storage.Store
			if save {
				st = storage.New(a.dataDir)
				if err := st.Init(); err != nil {
					return err
				}
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "FACTOR\tSTEPS\tREJECTED\tGUARD\tSHRINKS\tSTAGNATED\tMIN\tRESIDUAL\tSTATUS")
			for _, run := range runs {
				status := "ok"
				if run.Err != nil {
					status = run.Err.Error()
				}
				fmt.Fprintf(w, "%g\t%d\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
					run.Config.Guard.ScaleFactor,
					run.Result.Stats.Steps,
					run.Result.Stats.Rejected,
					run.Guard.Invocations,
					run.Guard.ShrinkIterations,
					run.Guard.Stagnations,
					metric(run.Result.Metrics, "min_component"),
					metric(run.Result.Metrics, "max_residual"),
					status)
				if st != nil {
					if _, err := st.Save(run); err != nil {
						return err
					}
				}
			}
			return w.Flush()
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().Float64SliceVar(&factors, "factors", []float64{0.25, 0.5, 0.75, 0.9}, "scale factors to compare")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent runs (0 uses GOMAXPROCS)")
	cmd.Flags().BoolVar(&save, "save", false, "store every run")
	return cmd
}

func metric(m map[string]float64, name string) string {
	v, ok := m[name]
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(v, 'g', 4, 64)
}
