// Package report prints the end-of-run summary and writes the completion
// marker other tools look for.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mentorchita/ecommerce-start/internal/console"
	"github.com/mentorchita/ecommerce-start/internal/orchestrator"
)

// Reporter renders a RunResult.
type Reporter struct {
	out        *console.Printer
	markerPath string
	now        func() time.Time
}

// New returns a Reporter printing to out and writing the marker at
// markerPath. An empty markerPath disables the marker.
func New(out *console.Printer, markerPath string) *Reporter {
	return &Reporter{out: out, markerPath: markerPath, now: time.Now}
}

// Report prints the summary and writes the marker. Failures are logged and
// never returned, so a presentation problem cannot fail a finished run.
func (r *Reporter) Report(ctx context.Context, res *orchestrator.RunResult) error {
	r.Print(res)
	if err := r.WriteMarker(res); err != nil {
		slog.WarnContext(ctx, "writing completion marker failed", "path", r.markerPath, "err", err)
		r.out.Warning("could not write %s: %v", r.markerPath, err)
	}
	return nil
}

// Print writes the colored summary.
func (r *Reporter) Print(res *orchestrator.RunResult) {
	r.out.Header("Setup summary")

	for _, s := range res.Stages {
		line := s.Stage
		if s.Detail != "" {
			line += ": " + s.Detail
		}
		switch s.Status {
		case orchestrator.StatusSuccess:
			r.out.Success("%s", line)
		case orchestrator.StatusSkipped:
			r.out.Skipped("%s", line)
		case orchestrator.StatusDegraded:
			r.out.Warning("%s", line)
		default:
			r.out.Failure("%s", line)
		}
	}

	if res.Launch.Complete() {
		r.out.Success("Services running: %s", Running(res))
	} else {
		r.out.Warning("Services running: %s", Running(res))
	}

	for _, p := range res.Probes {
		if p.Healthy {
			r.out.Success("%s ready (%s)", p.Service, p.Target)
		} else {
			r.out.Failure("%s not ready (%s)", p.Service, p.Target)
			if p.LastError != "" {
				r.out.Hint("%s", p.LastError)
			}
		}
	}

	r.out.Info("Run %s finished in %s", res.RunID, res.FinishedAt.Sub(res.StartedAt).Round(time.Second))
}

// Running formats the launch count as running/total.
func Running(res *orchestrator.RunResult) string {
	return fmt.Sprintf("%d/%d", res.Launch.Running, res.Launch.Total)
}

// Marker renders the marker body.
func Marker(res *orchestrator.RunResult, completedAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "completed_at=%s\n", completedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "run_id=%s\n", res.RunID)
	fmt.Fprintf(&b, "quick_mode=%t\n", res.Config.QuickMode)
	fmt.Fprintf(&b, "skip_build=%t\n", res.Config.SkipBuild)
	fmt.Fprintf(&b, "skip_data=%t\n", res.Config.SkipData)
	fmt.Fprintf(&b, "services_running=%s\n", Running(res))
	return b.String()
}

// WriteMarker writes the marker, replacing any previous one.
func (r *Reporter) WriteMarker(res *orchestrator.RunResult) error {
	if r.markerPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.markerPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(r.markerPath, []byte(Marker(res, r.now())), 0o644)
}
