// Package telemetry wires OpenTelemetry tracing and metrics and the slog
// handlers that correlate log lines with spans.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mentorchita/ecommerce-start/internal/config"
)

// Version is reported as service.version.
var Version = "dev"

const defaultExportInterval = 10 * time.Second

// Provider owns the providers installed by InitProvider.
type Provider struct {
	closers []func(context.Context) error
}

// Enabled reports whether spans and metrics are exported.
func (p *Provider) Enabled() bool { return len(p.closers) > 0 }

// InitProvider installs global trace and metric providers exporting over
// OTLP gRPC to cfg.OTLPEndpoint. An empty endpoint leaves the global no-op
// providers in place. The dial is lazy: an unreachable collector never blocks
// a bring-up, exports just fail and are logged at WARN.
func InitProvider(ctx context.Context, cfg config.TelemetryConfig) (*Provider, error) {
	p := &Provider{}
	if cfg.OTLPEndpoint == "" {
		return p, nil
	}

	res, err := newResource(ctx, cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	var dialOpts []grpc.DialOption
	if cfg.OTLPInsecure {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(cfg.OTLPEndpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating gRPC client for OTEL: %w", err)
	}
	// Registered first, closed last.
	p.closers = append(p.closers, func(context.Context) error { return conn.Close() })

	tp, err := newTracerProvider(ctx, conn, res)
	if err != nil {
		p.Shutdown(ctx) //nolint:errcheck
		return nil, err
	}
	p.closers = append(p.closers, tp.Shutdown)

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}
	mp, err := newMeterProvider(ctx, conn, res, interval)
	if err != nil {
		p.Shutdown(ctx) //nolint:errcheck
		return nil, err
	}
	p.closers = append(p.closers, mp.Shutdown)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		slog.Warn("otel export error (will retry)", "err", err)
	}))
	return p, nil
}

func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = "bringup"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(Version),
			semconv.ServiceNamespace("ecommerce-start"),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("building OTEL resource: %w", err)
	}
	return res, nil
}

func newTracerProvider(ctx context.Context, conn *grpc.ClientConn, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}

func newMeterProvider(ctx context.Context, conn *grpc.ClientConn, res *resource.Resource, interval time.Duration) (*sdkmetric.MeterProvider, error) {
	exp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	), nil
}

// Shutdown flushes the providers and closes the connection, in reverse
// order of creation. Flush failures against a dead collector are dropped;
// only the connection close is reported. ctx should have a deadline.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		err := p.closers[i](ctx)
		if i == 0 && err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}
