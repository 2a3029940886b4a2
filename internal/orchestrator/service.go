package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/mentorchita/ecommerce-start/internal/clients"
	"github.com/mentorchita/ecommerce-start/internal/readiness"
)

// ErrProbeInProgress is returned when RunProbe is called while a probe run is
// already active.
var ErrProbeInProgress = errors.New("probe already in progress")

// HealthProber is satisfied by *clients.Guarded.
type HealthProber interface {
	Probe(ctx context.Context) clients.Health
}

// ProbeRun is one background readiness run started through the API.
type ProbeRun struct {
	ID         string                  `json:"id"`
	Healthy    bool                    `json:"healthy"`
	StartedAt  time.Time               `json:"startedAt"`
	FinishedAt time.Time               `json:"finishedAt"`
	Results    []readiness.ProbeResult `json:"results"`
}

// Service backs the status API: deep health, background probe runs and the
// completion marker.
type Service struct {
	prober     ReadinessProber
	targets    []readiness.Target
	health     []HealthProber
	markerPath string
	// callTimeout bounds each deep health check; zero leaves only the
	// request context.
	callTimeout time.Duration

	probeInProgress atomic.Bool
	lastRun         *ProbeRun
	resultMu        sync.RWMutex
}

// NewService constructs a Service. markerPath is the completion marker the
// readiness endpoint looks for; callTimeout caps every deep health check.
func NewService(prober ReadinessProber, targets []readiness.Target, health []HealthProber, markerPath string, callTimeout time.Duration) *Service {
	return &Service{
		prober:      prober,
		targets:     targets,
		health:      health,
		markerPath:  markerPath,
		callTimeout: callTimeout,
	}
}

// RunProbe polls every target under the readiness policy and stores the
// result. Returns ErrProbeInProgress if a run is already active.
func (s *Service) RunProbe(ctx context.Context) (*ProbeRun, error) {
	if !s.probeInProgress.CompareAndSwap(false, true) {
		return nil, ErrProbeInProgress
	}
	defer s.probeInProgress.Store(false)

	run := &ProbeRun{ID: ulid.Make().String(), StartedAt: time.Now()}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "bringup.probe")
	defer span.End()

	slog.InfoContext(ctx, "probe run started", "run_id", run.ID, "targets", len(s.targets))

	run.Results = s.prober.ProbeAll(ctx, s.targets)
	run.Healthy = readiness.AllHealthy(run.Results)
	run.FinishedAt = time.Now()

	span.SetAttributes(
		attribute.String("run.id", run.ID),
		attribute.Int("probe.healthy", readiness.CountHealthy(run.Results)),
		attribute.Int("probe.total", len(run.Results)),
	)
	if run.Healthy {
		span.SetStatus(codes.Ok, "")
		slog.InfoContext(ctx, "probe run completed", "run_id", run.ID)
	} else {
		span.SetStatus(codes.Error, "one or more services unhealthy")
		slog.WarnContext(ctx, "probe run completed with unhealthy services", "run_id", run.ID,
			"healthy", readiness.CountHealthy(run.Results), "total", len(run.Results))
	}

	s.resultMu.Lock()
	s.lastRun = run
	s.resultMu.Unlock()

	return run, nil
}

// LastProbe returns the most recent completed probe run, or nil.
func (s *Service) LastProbe() *ProbeRun {
	s.resultMu.RLock()
	defer s.resultMu.RUnlock()
	return s.lastRun
}

// IsProbeInProgress returns true while a probe run is active.
func (s *Service) IsProbeInProgress() bool {
	return s.probeInProgress.Load()
}

// DeepHealth checks every service once, concurrently, through its breaker.
// Results keep the configured service order.
func (s *Service) DeepHealth(ctx context.Context) []clients.Health {
	results := make([]clients.Health, len(s.health))
	var g errgroup.Group
	for i, h := range s.health {
		g.Go(func() error {
			pctx, cancel := ctx, context.CancelFunc(func() {})
			if s.callTimeout > 0 {
				pctx, cancel = context.WithTimeout(ctx, s.callTimeout)
			}
			defer cancel()
			results[i] = h.Probe(pctx)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// IsReady reports whether the completion marker exists.
func (s *Service) IsReady() bool {
	if s.markerPath == "" {
		return false
	}
	_, err := os.Stat(s.markerPath)
	return err == nil
}
