// Package tracing bootstraps the OpenTelemetry tracer provider used by the
// orchestrator and the coordination planner.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hupe1980/opsmesh/internal/config"
	"github.com/hupe1980/opsmesh/logging"
)

// DefaultServiceName is reported when the configuration leaves it empty.
const DefaultServiceName = "opsmesh"

// ErrMissingEndpoint is returned when tracing is enabled without an endpoint.
var ErrMissingEndpoint = errors.New("tracing enabled but endpoint not configured")

// Provider owns the tracer provider lifecycle.
type Provider struct {
	tp      trace.TracerProvider
	sdk     *sdktrace.TracerProvider
	logger  logging.Logger
	enabled bool
}

// Options configures New.
type Options struct {
	Logger  logging.Logger
	Version string
	// SetGlobal installs the provider via otel.SetTracerProvider.
	SetGlobal bool
}

// New creates a tracer provider from cfg. A disabled configuration yields a
// no-op provider so callers never branch on whether tracing is on.
func New(ctx context.Context, cfg config.TracingConfig, optFns ...func(o *Options)) (*Provider, error) {
	opts := Options{
		Logger:  logging.NoOpLogger{},
		Version: "dev",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if !cfg.Enabled {
		opts.Logger.Info("tracing disabled")
		return &Provider{tp: noop.NewTracerProvider(), logger: opts.Logger}, nil
	}
	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}

	exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exporter, err := otlptracegrpc.New(dialCtx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(dialCtx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName(cfg)),
			semconv.ServiceVersion(opts.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SampleRatio)),
	)
	if opts.SetGlobal {
		otel.SetTracerProvider(sdk)
	}

	opts.Logger.Info("tracing initialized", "endpoint", cfg.Endpoint, "sample_ratio", cfg.SampleRatio)

	return &Provider{tp: sdk, sdk: sdk, logger: opts.Logger, enabled: true}, nil
}

// Sampler maps a ratio onto a parent-based sampler. Ratios at or above one
// sample everything; ratios at or below zero sample nothing.
func Sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// TracerProvider returns the provider to hand to instrumented components.
func (p *Provider) TracerProvider() trace.TracerProvider { return p.tp }

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool { return p.enabled }

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.enabled {
		return nil
	}
	if err := p.sdk.Shutdown(ctx); err != nil {
		p.logger.Error("tracer provider shutdown failed", "error", err)
		return err
	}
	p.logger.Info("tracing stopped")
	return nil
}

func serviceName(cfg config.TracingConfig) string {
	if cfg.ServiceName == "" {
		return DefaultServiceName
	}
	return cfg.ServiceName
}
