// Package observability exports ledger spans and metrics over OTLP/gRPC.
// Each transaction and instruction gets a span; instruction counts, failures
// and latency are metered, as are thaw verdicts.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const scope = "thawgate"

// Config selects where, and how much, telemetry goes.
type Config struct {
	ServiceName  string
	Environment  string
	OTLPEndpoint string // host:port of a gRPC collector
	SampleRate   float64
	Enabled      bool
	Insecure     bool
}

// DefaultConfig is telemetry off, pointed at a local plaintext collector.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:  "thawgate",
		Environment:  "development",
		OTLPEndpoint: "localhost:4317",
		SampleRate:   1.0,
		Insecure:     true,
	}
}

// Provider hands out the ledger's tracer and instruments. When telemetry is
// off every instrument is nil and recording is skipped.
type Provider struct {
	tracer trace.Tracer
	meter  metric.Meter
	spans  *sdktrace.TracerProvider
	meters *sdkmetric.MeterProvider

	instructions metric.Int64Counter
	failures     metric.Int64Counter
	latency      metric.Float64Histogram
	verdicts     metric.Int64Counter
}

// Noop returns a provider that records nothing.
func Noop() *Provider {
	return &Provider{tracer: otel.Tracer(scope), meter: otel.Meter(scope)}
}

// New starts the OTLP exporters when cfg.Enabled, and returns Noop otherwise.
func New(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := slog.Default().With("component", "observability")
	if !cfg.Enabled {
		logger.DebugContext(ctx, "telemetry disabled")
		return Noop(), nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}
	spanExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = spanExporter.Shutdown(ctx)
		return nil, fmt.Errorf("metric exporter: %w", err)
	}

	p := &Provider{
		spans: sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(spanExporter),
			sdktrace.WithSampler(sampler(cfg.SampleRate)),
		),
		meters: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
		),
	}
	p.tracer = p.spans.Tracer(scope)
	p.meter = p.meters.Meter(scope)
	if err := p.instruments(); err != nil {
		_ = p.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry instruments: %w", err)
	}

	logger.InfoContext(ctx, "telemetry enabled",
		"endpoint", cfg.OTLPEndpoint,
		"sample_rate", cfg.SampleRate,
	)
	return p, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	}
	return sdktrace.TraceIDRatioBased(rate)
}

func (p *Provider) instruments() error {
	var err error
	if p.instructions, err = p.meter.Int64Counter("thawgate.instructions.total",
		metric.WithDescription("Instructions executed"),
		metric.WithUnit("{instruction}")); err != nil {
		return err
	}
	if p.failures, err = p.meter.Int64Counter("thawgate.instructions.failed",
		metric.WithDescription("Instructions that failed, by error name"),
		metric.WithUnit("{instruction}")); err != nil {
		return err
	}
	if p.latency, err = p.meter.Float64Histogram("thawgate.instruction.duration",
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0)); err != nil {
		return err
	}
	p.verdicts, err = p.meter.Int64Counter("thawgate.thaw.verdicts",
		metric.WithDescription("Permissionless thaw verdicts"),
		metric.WithUnit("{verdict}"))
	return err
}

// Shutdown flushes pending spans and metrics.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.spans != nil {
		errs = append(errs, p.spans.Shutdown(ctx))
	}
	if p.meters != nil {
		errs = append(errs, p.meters.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (p *Provider) Tracer() trace.Tracer { return p.tracer }

func (p *Provider) Meter() metric.Meter { return p.meter }

// RecordVerdict counts one thaw decision. reason names the denial and is
// empty for an allowed thaw.
func (p *Provider) RecordVerdict(ctx context.Context, allowed bool, reason string) {
	if p.verdicts == nil {
		return
	}
	p.verdicts.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("thaw.allowed", allowed),
		attribute.String("thaw.reason", reason),
	))
}

// TrackOperation opens a span named name. The returned func closes it and
// records the outcome.
func (p *Provider) TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	set := metric.WithAttributes(attrs...)
	if p.instructions != nil {
		p.instructions.Add(ctx, 1, set)
	}
	return ctx, func(err error) {
		defer span.End()
		if p.latency != nil {
			p.latency.Record(ctx, time.Since(start).Seconds(), set)
		}
		if err == nil {
			return
		}
		span.RecordError(err)
		if p.failures != nil {
			p.failures.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("error.name", errorName(err)))...))
		}
	}
}

func errorName(err error) string {
	if pe, ok := programerr.As(err); ok {
		return pe.Name()
	}
	return fmt.Sprintf("%T", err)
}
