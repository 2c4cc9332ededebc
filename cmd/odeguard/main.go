package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/odeguard/internal/config"
	"github.com/san-kum/odeguard/internal/logging"
)

type app struct {
	env     config.Env
	dataDir string
	logger  *slog.Logger
}

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCmd(env).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(env config.Env) *cobra.Command {
	a := &app{env: env}
	var logLevel string

	rootCmd := &cobra.Command{
		Use:          "odeguard",
		Short:        "domain-constrained ODE integration",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			a.logger = logging.NewWriter(cmd.ErrOrStderr(), level)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.dataDir, "data", env.DataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", env.LogLevel, "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		a.runCmd(),
		a.sweepCmd(),
		a.listCmd(),
		a.plotCmd(),
		a.exportJSONCmd(),
		a.exportSVGCmd(),
		a.replayCmd(),
		problemsCmd(),
		describeCmd(),
		presetsCmd(),
	)
	return rootCmd
}
