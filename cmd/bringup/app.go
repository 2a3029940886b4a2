package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mentorchita/ecommerce-start/internal/clients"
	"github.com/mentorchita/ecommerce-start/internal/compose"
	"github.com/mentorchita/ecommerce-start/internal/config"
	"github.com/mentorchita/ecommerce-start/internal/console"
	"github.com/mentorchita/ecommerce-start/internal/datagen"
	"github.com/mentorchita/ecommerce-start/internal/dvc"
	"github.com/mentorchita/ecommerce-start/internal/orchestrator"
	"github.com/mentorchita/ecommerce-start/internal/prereq"
	"github.com/mentorchita/ecommerce-start/internal/readiness"
	"github.com/mentorchita/ecommerce-start/internal/report"
	"github.com/mentorchita/ecommerce-start/internal/shell"
	"github.com/mentorchita/ecommerce-start/internal/telemetry"
	"github.com/mentorchita/ecommerce-start/internal/workspace"
)

// AppContext holds the dependencies shared across subcommands. It is built
// once in PersistentPreRunE.
type AppContext struct {
	cfg          *config.Config
	runner       shell.Runner
	otelProvider *telemetry.Provider
	closeLog     func() error
}

// buildAppContext installs the logger and the OTEL provider. Neither a bad
// log file nor a missing collector stops the bring-up.
func buildAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	app := &AppContext{cfg: cfg, runner: shell.NewExec(), closeLog: func() error { return nil }}

	logger, closeLog, err := telemetry.NewLogger(os.Stderr, cfg.Telemetry.LogLevel, app.path(cfg.Telemetry.LogFile))
	if err != nil {
		logger, _, _ = telemetry.NewLogger(os.Stderr, cfg.Telemetry.LogLevel, "")
		logger.Warn("log file disabled", "err", err)
	} else {
		app.closeLog = closeLog
	}
	slog.SetDefault(logger)

	tp, err := telemetry.InitProvider(ctx, cfg.Telemetry)
	if err != nil {
		slog.WarnContext(ctx, "OTEL provider init failed, telemetry disabled", "err", err)
		return app, nil
	}
	if !tp.Enabled() {
		slog.DebugContext(ctx, "OTEL telemetry disabled (no endpoint configured)")
	}
	app.otelProvider = tp
	return app, nil
}

// Close flushes telemetry and releases the log file.
func (a *AppContext) Close() {
	if a.otelProvider != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelProvider.Shutdown(shutCtx); err != nil {
			slog.Warn("OTEL shutdown error", "err", err)
		}
	}
	if err := a.closeLog(); err != nil {
		slog.Warn("closing log file", "err", err)
	}
}

// Pipeline wires every stage of the bring-up from config. A critical service
// with an unknown kind is a config error, not an empty readiness stage.
func (a *AppContext) Pipeline(out *console.Printer) (*orchestrator.Orchestrator, error) {
	root := a.cfg.Project.Root

	targets, err := readiness.TargetsFor(a.cfg.Readiness.CriticalServices())
	if err != nil {
		return nil, fmt.Errorf("readiness targets: %w", err)
	}

	return orchestrator.New(orchestrator.Stages{
		Prereq:    prereq.NewVerifier(a.cfg, a.runner),
		Workspace: workspace.NewMaterializer(a.cfg.Project),
		DVC:       a.Bootstrapper(),
		Data:      datagen.NewDefault(root, a.cfg.Data, a.runner),
		Stack:     compose.New(root, a.cfg.Compose, a.runner),
		Readiness: readiness.NewProber(a.cfg.Readiness),
		Reporter:  report.New(out, a.markerPath()),
		Targets:   targets,
	}, out), nil
}

func (a *AppContext) Bootstrapper() *dvc.Bootstrapper {
	return dvc.NewBootstrapper(a.cfg.Project.Root, a.cfg.DVC, a.runner)
}

func (a *AppContext) Tracker() *dvc.Tracker {
	return dvc.NewTracker(a.cfg.Project.Root, a.cfg.DVC.TrackThreshold, a.runner)
}

// StatusService backs the serve command: full readiness runs over every
// configured service plus breaker-guarded deep health.
func (a *AppContext) StatusService(rc config.ReadinessConfig) (*orchestrator.Service, error) {
	targets, err := readiness.TargetsFor(rc.Services)
	if err != nil {
		return nil, fmt.Errorf("readiness targets: %w", err)
	}
	guarded, err := clients.NewGuardedSet(rc.Services)
	if err != nil {
		return nil, fmt.Errorf("health checkers: %w", err)
	}
	health := make([]orchestrator.HealthProber, len(guarded))
	for i, g := range guarded {
		health[i] = g
	}
	return orchestrator.NewService(readiness.NewProber(rc), targets, health, a.markerPath(), rc.CallTimeout), nil
}

func (a *AppContext) markerPath() string {
	return a.path(a.cfg.Project.MarkerFile)
}

// path resolves rel against the project root; absolute and empty paths pass
// through.
func (a *AppContext) path(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(a.cfg.Project.Root, rel)
}
