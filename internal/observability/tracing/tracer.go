package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the global tracer instance for the callguard application.
var tracer = otel.Tracer("callguard")

// GetTracer returns the global tracer for creating spans.
// This tracer can be used throughout the application to create new spans.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "operation-name")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}

// StartSpan starts a new span under the global tracer.
// This is a convenience wrapper for the common case of internal spans.
//
// Example usage:
//
//	ctx, span := tracing.StartSpan(ctx, "pipeline.run")
//	defer span.End()
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, opts...)
}

// Init installs a tracer provider for the given service name and returns
// a shutdown function that flushes pending spans.
//
// No span exporter is wired here; exporter integration is configured by the
// deployment (an OTLP collector sidecar picks up spans where available).
// Trace context is still generated and propagated in W3C format so request
// IDs can be correlated across services.
//
// Example usage:
//
//	shutdown := tracing.Init("callguard-worker")
//	defer shutdown(context.Background())
func Init(serviceName string) func(context.Context) error {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer = otel.Tracer("callguard")

	return tp.Shutdown
}
