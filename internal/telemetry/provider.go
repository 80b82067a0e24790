// Package telemetry wires OpenTelemetry tracing for the command-line tools.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Version is stamped on every span's resource. Override at build time with
// -ldflags "-X .../internal/telemetry.Version=v1.2.3".
var Version = "dev"

// Namespace groups the simulator, the scorer stub and the replay tool.
const Namespace = "delphi"

// Setup exports spans over OTLP/HTTP to endpoint. An empty endpoint leaves
// tracing off and returns a shutdown func that does nothing.
func Setup(ctx context.Context, endpoint, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, err
	}
	tp, err := SetupWithExporter(ctx, exporter, serviceName)
	if err != nil {
		return noop, err
	}
	return tp.Shutdown, nil
}

// SetupWithExporter installs a global provider batching to exporter and the
// W3C trace-context propagator the scorer client and server rely on.
func SetupWithExporter(ctx context.Context, exporter sdktrace.SpanExporter, serviceName string) (*sdktrace.TracerProvider, error) {
	res, err := Resource(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp, nil
}

// Resource describes one Delphi process.
func Resource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceNamespace(Namespace),
			semconv.ServiceVersion(Version),
		),
		resource.WithProcessPID(),
	)
}
