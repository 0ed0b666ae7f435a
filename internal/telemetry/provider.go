package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/oshokin/gas-guard/internal/config"
	"github.com/oshokin/gas-guard/internal/version"
)

// Provider owns the tracer provider registered by Setup.
// The zero value is disabled tracing: every method is a no-op.
type Provider struct {
	// tracer is nil when no collector is configured.
	tracer *sdktrace.TracerProvider
}

// Setup registers a global tracer provider exporting to the configured OTLP/HTTP endpoint.
// Without an endpoint it registers nothing and returns a disabled Provider;
// the gRPC stats handlers then record into the default no-op provider.
func Setup(ctx context.Context, settings *config.TelemetryConfig, serviceName string) (*Provider, error) {
	if settings == nil || settings.Endpoint == "" {
		return &Provider{}, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(settings.Endpoint))
	if err != nil {
		return &Provider{}, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version.Short()),
		),
	)
	if err != nil {
		return &Provider{}, fmt.Errorf("create resource: %w", err)
	}

	tracer := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tracer)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &Provider{tracer: tracer}, nil
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.tracer != nil
}

// ForceFlush exports the spans buffered so far without stopping the exporter.
// Lambda freezes the process between invocations, so it runs after each one.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}

	return p.tracer.ForceFlush(ctx)
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}

	return p.tracer.Shutdown(ctx)
}
