package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/san-kum/odeguard/internal/config"
	"github.com/san-kum/odeguard/internal/export"
	"github.com/san-kum/odeguard/internal/problems"
	"github.com/san-kum/odeguard/internal/storage"
	"github.com/san-kum/odeguard/internal/viz"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := storage.New(a.dataDir).List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs found")
				return nil
			}
			w := newTable(out)
			fmt.Fprintln(w, "ID\tPROBLEM\tMETHOD\tDOMAIN\tSTEPS\tSHRINKS\tTIMESTAMP")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					r.ID, r.Problem, r.Method, r.Domain,
					r.Stats.Steps, r.Guard.ShrinkIterations,
					r.Timestamp.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}

func (a *app) plotCmd() *cobra.Command {
	var (
		opts  viz.PlotOptions
		phase []int
	)
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored trajectory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(a.dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			states, times, err := st.LoadStates(args[0])
			if err != nil {
				return err
			}

			var graph string
			if len(phase) > 0 {
				if len(phase) != 2 {
					return fmt.Errorf("--phase takes two components, got %d", len(phase))
				}
				graph, err = viz.Phase(states, phase[0], phase[1], opts.Width, opts.Height)
			} else {
				if opts.Caption == "" {
					opts.Caption = fmt.Sprintf("%s (%s, %s)", meta.Problem, meta.Method, meta.Domain)
				}
				graph, err = viz.Plot(states, times, opts)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), graph)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Width, "width", 0, "plot width in columns")
	cmd.Flags().IntVar(&opts.Height, "height", 0, "plot height in rows")
	cmd.Flags().StringVar(&opts.Caption, "caption", "", "plot caption")
	cmd.Flags().IntSliceVar(&opts.Components, "components", nil, "state components to plot")
	cmd.Flags().IntSliceVar(&phase, "phase", nil, "draw a phase portrait of two components, e.g. 0,1")
	return cmd
}

func (a *app) exportSVGCmd() *cobra.Command {
	var (
		output string
		xy     []int
		opts   = export.DefaultSVGOptions()
	)
	cmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "export a phase portrait of a stored run as svg",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(xy) != 2 {
				return fmt.Errorf("--components takes two components, got %d", len(xy))
			}
			st := storage.New(a.dataDir)
			states, _, err := st.LoadStates(args[0])
			if err != nil {
				return err
			}
			if cfg, err := st.LoadConfig(args[0]); err == nil && cfg.Guard.Domain != "none" {
				opts.Tolerance = replayTolerance(cfg)
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return export.PhaseSVG(w, states, xy[0], xy[1], opts)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().IntSliceVar(&xy, "components", []int{0, 1}, "components on the x and y axes")
	cmd.Flags().IntVar(&opts.Width, "width", opts.Width, "image width")
	cmd.Flags().IntVar(&opts.Height, "height", opts.Height, "image height")
	cmd.Flags().StringVar(&opts.Stroke, "stroke", opts.Stroke, "trajectory color")
	return cmd
}

func (a *app) exportJSONCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a stored run as json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return storage.New(a.dataDir).Export(w, args[0])
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func (a *app) replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay [run_id]",
		Short: "step through a stored trajectory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(a.dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			states, times, err := st.LoadStates(args[0])
			if err != nil {
				return err
			}
			m := viz.NewReplay(fmt.Sprintf("%s · %s · %s", meta.Problem, meta.Method, meta.Domain), states, times)
			if cfg, err := st.LoadConfig(args[0]); err == nil {
				m.Tolerance = replayTolerance(cfg)
			}
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("replay needs an interactive terminal; use plot or export-json instead")
			}
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
}

// replayTolerance is the smallest guard tolerance of the run, falling back to
// the integrator's.
func replayTolerance(cfg *config.Config) float64 {
	tol := cfg.Guard.AbsTol
	if len(tol) == 0 {
		tol = cfg.AbsTol
	}
	if len(tol) == 0 {
		return config.DefaultAbsTol
	}
	lowest := tol[0]
	for _, v := range tol[1:] {
		lowest = min(lowest, v)
	}
	return lowest
}

func problemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "problems",
		Short: "list available problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "NAME\tDOMAIN\tDIM\tPARAMS\tDESCRIPTION")
			for _, name := range problems.Names() {
				p, err := problems.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					p.Name, p.Domain, p.System.StateDim(),
					strings.Join(p.ParamNames, ","), p.Description)
			}
			return w.Flush()
		},
	}
}

func describeCmd() *cobra.Command {
	var (
		style string
		width int
		raw   bool
	)
	cmd := &cobra.Command{
		Use:   "describe [problem]",
		Short: "show a problem's parameters and presets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := problems.Get(args[0])
			if err != nil {
				return err
			}
			if raw {
				fmt.Fprint(cmd.OutOrStdout(), viz.ProblemMarkdown(p))
				return nil
			}
			out, err := viz.Describe(p, style, width)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&style, "style", "", "glamour style (dark, light, notty); empty detects the terminal")
	cmd.Flags().IntVar(&width, "width", 80, "word wrap width")
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without rendering")
	return cmd
}

func presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [problem]",
		Short: "list presets for a problem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := config.ListPresets(args[0])
			if len(names) == 0 {
				return fmt.Errorf("no presets for problem %s", args[0])
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "PRESET\tMETHOD\tDOMAIN\tSCALE\tABSTOL")
			for _, name := range names {
				p := config.GetPreset(args[0], name)
				domain := p.Guard.Domain
				if domain == "" {
					domain = "default"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%v\n", name, p.Method, domain, p.Guard.ScaleFactor, p.AbsTol)
			}
			return w.Flush()
		},
	}
}
