// Package orchestrator drives the bring-up pipeline: prerequisites, workspace,
// DVC, data, build, launch, readiness and the summary. Stages run strictly in
// order; each reports its own status and only the driver decides what is
// fatal.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mentorchita/ecommerce-start/internal/compose"
	"github.com/mentorchita/ecommerce-start/internal/console"
	"github.com/mentorchita/ecommerce-start/internal/datagen"
	"github.com/mentorchita/ecommerce-start/internal/dvc"
	"github.com/mentorchita/ecommerce-start/internal/prereq"
	"github.com/mentorchita/ecommerce-start/internal/readiness"
	"github.com/mentorchita/ecommerce-start/internal/workspace"
)

var (
	// ErrPrerequisitesNotMet stops the run before anything is changed.
	ErrPrerequisitesNotMet = errors.New("prerequisites not met")
	// ErrBuildFailed stops the run before launch and the summary.
	ErrBuildFailed = errors.New("image build failed")
)

const tracerName = "github.com/mentorchita/ecommerce-start/internal/orchestrator"

// PrereqVerifier is satisfied by *prereq.Verifier.
type PrereqVerifier interface {
	Verify(ctx context.Context) prereq.Report
}

// Materializer is satisfied by *workspace.Materializer.
type Materializer interface {
	Ensure(ctx context.Context) workspace.Result
}

// DVCBootstrapper is satisfied by *dvc.Bootstrapper.
type DVCBootstrapper interface {
	Bootstrap(ctx context.Context, opts dvc.Options) (*dvc.Result, error)
}

// DataGenerator is satisfied by *datagen.Generator.
type DataGenerator interface {
	Generate(ctx context.Context, sizes datagen.Sizes) datagen.Outcome
}

// Stack is satisfied by *compose.Client.
type Stack interface {
	Build(ctx context.Context, useCache bool) error
	Launch(ctx context.Context) (compose.LaunchResult, error)
}

// ReadinessProber is satisfied by *readiness.Prober.
type ReadinessProber interface {
	ProbeAll(ctx context.Context, targets []readiness.Target) []readiness.ProbeResult
}

// Reporter prints the summary and writes the completion marker.
type Reporter interface {
	Report(ctx context.Context, res *RunResult) error
}

// Stages bundles the pipeline collaborators.
type Stages struct {
	Prereq    PrereqVerifier
	Workspace Materializer
	DVC       DVCBootstrapper
	Data      DataGenerator
	Stack     Stack
	Readiness ReadinessProber
	Reporter  Reporter
	// Targets are the services the readiness stage waits for.
	Targets []readiness.Target
}

// Orchestrator runs the pipeline.
type Orchestrator struct {
	stages Stages
	out    *console.Printer
	now    func() time.Time
	tracer trace.Tracer
}

// New returns an Orchestrator printing progress to out.
func New(stages Stages, out *console.Printer) *Orchestrator {
	if out == nil {
		out = console.Discard()
	}
	return &Orchestrator{
		stages: stages,
		out:    out,
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
}

// Run executes every stage in order. The returned error is non-nil only for
// fatal conditions: unmet prerequisites, a missing DVC remote URL or a failed
// build. The RunResult is returned in every case.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfiguration) (*RunResult, error) {
	res := &RunResult{
		RunID:     ulid.Make().String(),
		StartedAt: o.now(),
		Config:    cfg,
	}

	ctx, span := o.tracer.Start(ctx, "bringup.run", trace.WithAttributes(
		attribute.String("run.id", res.RunID),
		attribute.Bool("run.quick", cfg.QuickMode),
		attribute.Bool("run.skip_build", cfg.SkipBuild),
		attribute.Bool("run.skip_data", cfg.SkipData),
	))
	defer span.End()

	slog.InfoContext(ctx, "bring-up started", "run_id", res.RunID, "quick", cfg.QuickMode,
		"skip_build", cfg.SkipBuild, "skip_data", cfg.SkipData)

	err := o.run(ctx, cfg, res)
	res.FinishedAt = o.now()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "bring-up aborted", "run_id", res.RunID, "err", err)
		return res, err
	}

	if o.stages.Reporter != nil {
		if err := o.stages.Reporter.Report(ctx, res); err != nil {
			slog.WarnContext(ctx, "summary report failed", "err", err)
		}
	}
	span.SetStatus(codes.Ok, "")
	slog.InfoContext(ctx, "bring-up finished", "run_id", res.RunID,
		"running", res.Launch.Running, "total", res.Launch.Total)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, cfg RunConfiguration, res *RunResult) error {
	if err := o.stage(ctx, StagePrerequisites, func(ctx context.Context) (StageResult, error) {
		return o.prerequisites(ctx, res)
	}); err != nil {
		return err
	}

	_ = o.stage(ctx, StageEnvironment, func(ctx context.Context) (StageResult, error) {
		return o.environment(ctx, res), nil
	})

	if err := o.stage(ctx, StageDVC, func(ctx context.Context) (StageResult, error) {
		return o.dependencies(ctx, res)
	}); err != nil {
		return err
	}

	_ = o.stage(ctx, StageData, func(ctx context.Context) (StageResult, error) {
		return o.data(ctx, cfg, res), nil
	})

	if err := o.stage(ctx, StageBuild, func(ctx context.Context) (StageResult, error) {
		return o.build(ctx, cfg, res)
	}); err != nil {
		return err
	}

	_ = o.stage(ctx, StageLaunch, func(ctx context.Context) (StageResult, error) {
		return o.launch(ctx, res), nil
	})

	_ = o.stage(ctx, StageReadiness, func(ctx context.Context) (StageResult, error) {
		return o.readiness(ctx, res), nil
	})
	return nil
}

// stage wraps fn in a span named after id.
func (o *Orchestrator) stage(ctx context.Context, id string, fn func(context.Context) (StageResult, error)) error {
	ctx, span := o.tracer.Start(ctx, "bringup.stage."+id)
	defer span.End()

	sr, err := fn(ctx)
	span.SetAttributes(attribute.String("stage.status", string(sr.Status)))
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case sr.Status == StatusFailure:
		span.SetStatus(codes.Error, sr.Detail)
	default:
		span.SetStatus(codes.Ok, "")
	}
	slog.DebugContext(ctx, "stage finished", "stage", id, "status", sr.Status, "detail", sr.Detail)
	return err
}

func (o *Orchestrator) prerequisites(ctx context.Context, res *RunResult) (StageResult, error) {
	o.out.Header("Checking prerequisites")
	report := o.stages.Prereq.Verify(ctx)
	res.Prerequisites = report

	for _, c := range report.Checks {
		switch {
		case c.OK():
			o.out.Success("%s %s", c.Name, describe(c))
		case c.Blocking():
			o.out.Failure("%s %s", c.Name, describe(c))
		default:
			o.out.Warning("%s %s", c.Name, describe(c))
		}
		if !c.OK() && c.Hint != "" {
			o.out.Hint("%s", c.Hint)
		}
	}

	if !report.AllMet {
		var names []string
		for _, c := range report.Checks {
			if c.Blocking() {
				names = append(names, c.Name)
			}
		}
		detail := strings.Join(names, ", ")
		o.out.Failure("Prerequisites not met: %s", detail)
		return res.record(StagePrerequisites, StatusFailure, detail),
			fmt.Errorf("%w: %s", ErrPrerequisitesNotMet, detail)
	}
	if len(report.Failures()) > 0 {
		return res.record(StagePrerequisites, StatusDegraded, fmt.Sprintf("%d warning(s)", len(report.Failures()))), nil
	}
	return res.record(StagePrerequisites, StatusSuccess, ""), nil
}

func describe(c prereq.Check) string {
	var parts []string
	if c.Version != "" {
		parts = append(parts, c.Version)
	}
	if c.Minimum != "" && !c.MeetsMinimum {
		parts = append(parts, "(minimum "+c.Minimum+")")
	}
	if c.Detail != "" {
		parts = append(parts, c.Detail)
	}
	return strings.Join(parts, " ")
}

func (o *Orchestrator) environment(ctx context.Context, res *RunResult) StageResult {
	o.out.Header("Preparing workspace")
	ws := o.stages.Workspace.Ensure(ctx)

	for _, dir := range ws.Created {
		o.out.Success("created %s", dir)
	}
	switch ws.EnvSource {
	case workspace.EnvTemplate:
		o.out.Success("%s created from template", ws.EnvFile)
	case workspace.EnvDefault:
		o.out.Success("%s created with defaults", ws.EnvFile)
	case workspace.EnvExisting:
		o.out.Info("%s already present", ws.EnvFile)
	}
	for _, err := range ws.Errors {
		o.out.Warning("%v", err)
	}
	if len(ws.MissingKeys) > 0 {
		o.out.Warning("%s is missing %s", ws.EnvFile, strings.Join(ws.MissingKeys, ", "))
		o.out.Hint("add the keys by hand; bringup never edits an existing %s", ws.EnvFile)
	}

	switch {
	case len(ws.Errors) > 0:
		return res.record(StageEnvironment, StatusDegraded, fmt.Sprintf("%d error(s)", len(ws.Errors)))
	case len(ws.MissingKeys) > 0:
		return res.record(StageEnvironment, StatusDegraded, fmt.Sprintf("%d env key(s) missing", len(ws.MissingKeys)))
	case !ws.Changed():
		o.out.Info("workspace already prepared")
		return res.record(StageEnvironment, StatusSuccess, "up to date")
	}
	return res.record(StageEnvironment, StatusSuccess,
		fmt.Sprintf("%d created, %d existing", len(ws.Created), len(ws.Existing)))
}

func (o *Orchestrator) dependencies(ctx context.Context, res *RunResult) (StageResult, error) {
	o.out.Header("Bootstrapping DVC")
	dr, err := o.stages.DVC.Bootstrap(ctx, dvc.Options{})
	if err != nil {
		if errors.Is(err, dvc.ErrRemoteURLRequired) {
			o.out.Failure("%v", err)
			o.out.Hint("configure dvc.remote_url or run: bringup dvc init --remote-type TYPE --remote-url URL")
			return res.record(StageDVC, StatusFailure, err.Error()), err
		}
		o.out.Failure("DVC bootstrap failed: %v", err)
		return res.record(StageDVC, StatusFailure, err.Error()), nil
	}

	for _, s := range dr.Steps {
		switch s.Status {
		case dvc.StepDone:
			o.out.Success("%s %s", s.Name, s.Detail)
		case dvc.StepSkipped:
			o.out.Skipped("%s %s", s.Name, s.Detail)
		default:
			o.out.Warning("%s %s", s.Name, s.Detail)
		}
	}
	if dr.Degraded() {
		return res.record(StageDVC, StatusDegraded, "remote "+dr.RemoteName), nil
	}
	return res.record(StageDVC, StatusSuccess, "remote "+dr.RemoteName), nil
}

func (o *Orchestrator) data(ctx context.Context, cfg RunConfiguration, res *RunResult) StageResult {
	o.out.Header("Generating data")
	if cfg.SkipData {
		o.out.Skipped("data generation (--skip-data)")
		return res.record(StageData, StatusSkipped, "--skip-data")
	}

	out := o.stages.Data.Generate(ctx, datagen.PresetFor(cfg.QuickMode))
	switch out.Status {
	case datagen.StatusSuccess:
		o.out.Success("%s: %s", out.Strategy, out.Detail)
		return res.record(StageData, StatusSuccess, out.Detail)
	case datagen.StatusDegraded:
		o.out.Warning("%s: %s", out.Strategy, out.Detail)
		return res.record(StageData, StatusDegraded, out.Detail)
	default:
		o.out.Failure("data generation failed: %s", out.Detail)
		return res.record(StageData, StatusFailure, out.Detail)
	}
}

func (o *Orchestrator) build(ctx context.Context, cfg RunConfiguration, res *RunResult) (StageResult, error) {
	o.out.Header("Building images")
	if cfg.SkipBuild {
		o.out.Skipped("image build (--skip-build)")
		return res.record(StageBuild, StatusSkipped, "--skip-build"), nil
	}

	if err := o.stages.Stack.Build(ctx, !cfg.QuickMode); err != nil {
		o.out.Failure("build failed: %v", err)
		o.out.Hint("inspect the build output above, then rerun or pass --skip-build")
		return res.record(StageBuild, StatusFailure, err.Error()), fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	o.out.Success("images built")
	return res.record(StageBuild, StatusSuccess, ""), nil
}

func (o *Orchestrator) launch(ctx context.Context, res *RunResult) StageResult {
	o.out.Header("Starting services")
	lr, err := o.stages.Stack.Launch(ctx)
	res.Launch = lr

	if err != nil {
		o.out.Failure("launch failed: %v", err)
		return res.record(StageLaunch, StatusFailure, err.Error())
	}

	detail := fmt.Sprintf("%d/%d running", lr.Running, lr.Total)
	if !lr.Complete() {
		o.out.Warning("%s", detail)
		if len(lr.Missing) > 0 {
			o.out.Hint("not running: %s", strings.Join(lr.Missing, ", "))
		}
		return res.record(StageLaunch, StatusDegraded, detail)
	}
	o.out.Success("%s", detail)
	return res.record(StageLaunch, StatusSuccess, detail)
}

func (o *Orchestrator) readiness(ctx context.Context, res *RunResult) StageResult {
	o.out.Header("Waiting for services")
	if len(o.stages.Targets) == 0 {
		o.out.Skipped("no services configured")
		return res.record(StageReadiness, StatusSkipped, "no services configured")
	}

	res.Probes = o.stages.Readiness.ProbeAll(ctx, o.stages.Targets)
	for _, p := range res.Probes {
		if p.Healthy {
			o.out.Success("%s healthy after %d attempt(s)", p.Service, p.Attempts)
		} else {
			o.out.Warning("%s not healthy after %d attempt(s): %s", p.Service, p.Attempts, p.LastError)
		}
	}

	healthy := readiness.CountHealthy(res.Probes)
	detail := fmt.Sprintf("%d/%d healthy", healthy, len(res.Probes))
	if healthy < len(res.Probes) {
		return res.record(StageReadiness, StatusDegraded, detail)
	}
	return res.record(StageReadiness, StatusSuccess, detail)
}
