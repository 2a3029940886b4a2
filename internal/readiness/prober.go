package readiness

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mentorchita/ecommerce-start/internal/config"
)

const instrumentation = "github.com/mentorchita/ecommerce-start/internal/readiness"

// Prober runs probes under one Policy.
type Prober struct {
	policy      Policy
	concurrency int
	deadline    time.Duration

	sleep    func(context.Context, time.Duration) error
	rand     func() float64
	now      func() time.Time
	tracer   trace.Tracer
	attempts metric.Int64Counter
}

// NewProber builds a Prober from cfg. Instruments come from the global otel
// providers, so they are no-ops until telemetry is initialised.
func NewProber(cfg config.ReadinessConfig) *Prober {
	return newProber(PolicyFrom(cfg), cfg.Concurrency, cfg.Deadline)
}

func newProber(policy Policy, concurrency int, deadline time.Duration) *Prober {
	counter, err := otel.Meter(instrumentation).Int64Counter(
		"bringup.readiness.attempts",
		metric.WithDescription("Health check attempts made by readiness probes"),
	)
	if err != nil {
		counter = noop.Int64Counter{}
	}
	return &Prober{
		policy:      policy,
		concurrency: concurrency,
		deadline:    deadline,
		sleep:       sleepCtx,
		rand:        defaultRand,
		now:         time.Now,
		tracer:      otel.Tracer(instrumentation),
		attempts:    counter,
	}
}

// Probe polls t until it is healthy or MaxAttempts checks have failed. It makes
// at most MaxAttempts checks and MaxAttempts-1 sleeps, and returns early with
// the context error when ctx is done.
func (p *Prober) Probe(ctx context.Context, t Target) ProbeResult {
	limit := p.policy.attempts()
	res := ProbeResult{
		Service:     t.Name,
		Target:      t.URL,
		MaxAttempts: limit,
		Interval:    p.policy.Interval,
	}
	attrs := attribute.String("service", t.Name)

	ctx, span := p.tracer.Start(ctx, "readiness.probe", trace.WithAttributes(attrs))
	defer span.End()

	start := p.now()
	for attempt := 1; attempt <= limit; attempt++ {
		if err := ctx.Err(); err != nil {
			res.LastError = err.Error()
			break
		}

		err := p.check(ctx, t.Checker)
		res.Attempts = attempt
		p.attempts.Add(ctx, 1, metric.WithAttributes(attrs))
		if err == nil {
			res.Healthy = true
			res.LastError = ""
			break
		}
		res.LastError = err.Error()
		slog.DebugContext(ctx, "health check failed", "service", t.Name, "attempt", attempt, "err", err)

		if attempt == limit {
			break
		}
		if err := p.sleep(ctx, p.policy.Delay(attempt, p.rand)); err != nil {
			res.LastError = err.Error()
			break
		}
	}
	res.Elapsed = p.now().Sub(start)

	span.SetAttributes(
		attribute.Int("readiness.attempts", res.Attempts),
		attribute.Bool("readiness.healthy", res.Healthy),
	)
	if res.Healthy {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, res.LastError)
	}
	return res
}

func (p *Prober) check(ctx context.Context, c Checker) error {
	if p.policy.CallTimeout <= 0 {
		return c.Check(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, p.policy.CallTimeout)
	defer cancel()
	return c.Check(callCtx)
}

// ProbeAll probes every target with at most concurrency probes in flight and
// returns the results in target order. The optional deadline bounds the whole
// call.
func (p *Prober) ProbeAll(ctx context.Context, targets []Target) []ProbeResult {
	if p.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.deadline)
		defer cancel()
	}

	results := make([]ProbeResult, len(targets))

	// Probe never fails, so a failing service cannot cancel its siblings.
	var g errgroup.Group
	g.SetLimit(max(p.concurrency, 1))
	for i, t := range targets {
		g.Go(func() error {
			results[i] = p.Probe(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
