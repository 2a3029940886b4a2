package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mentorchita/ecommerce-start/internal/config"
	"github.com/mentorchita/ecommerce-start/internal/console"
	"github.com/mentorchita/ecommerce-start/internal/dvc"
	"github.com/mentorchita/ecommerce-start/internal/orchestrator"
)

var (
	cfgFile  string
	logLevel string
	runCfg   orchestrator.RunConfiguration

	// cfg and app are populated by PersistentPreRunE and shared with all
	// subcommands.
	cfg *config.Config
	app *AppContext
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bringup",
		Short: "Bring up the e-commerce MLOps course environment",
		Long: `bringup takes a fresh checkout to a running stack in one command:
prerequisite checks, .env and directories, DVC, sample data, image build,
compose launch and readiness probes, then a summary and a completion marker.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runPipeline,
	}

	cmd.Flags().BoolVar(&runCfg.QuickMode, "quick", false, "small data preset, builds without cache")
	cmd.Flags().BoolVar(&runCfg.SkipBuild, "skip-build", false, "do not build images")
	cmd.Flags().BoolVar(&runCfg.SkipData, "skip-data", false, "do not generate sample data")

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	// Usage is silenced for run errors only; bad flags still show it.
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		c.PrintErrln(c.UsageString())
		return err
	})

	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		// --log-level takes precedence over the config file.
		if logLevel != "" {
			cfg.Telemetry.LogLevel = logLevel
		}

		app, err = buildAppContext(c.Context(), cfg)
		if err != nil {
			return fmt.Errorf("building app context: %w", err)
		}
		return nil
	}

	cmd.AddCommand(newVerifyCmd(), newDVCCmd(), newServeCmd())
	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if app != nil {
		app.Close()
	}
	if err == nil {
		return 0
	}

	slog.ErrorContext(ctx, "bringup failed", "err", err)
	if !alreadyReported(err) {
		console.New(os.Stderr).Failure("%v", err)
	}
	return 1
}

// alreadyReported is true for the fatal pipeline errors the orchestrator has
// printed with a remediation hint.
func alreadyReported(err error) bool {
	return errors.Is(err, orchestrator.ErrPrerequisitesNotMet) ||
		errors.Is(err, orchestrator.ErrBuildFailed) ||
		errors.Is(err, dvc.ErrRemoteURLRequired)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	orch, err := app.Pipeline(console.New(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	_, err = orch.Run(cmd.Context(), runCfg)
	return err
}
