// Package tracing provides OpenTelemetry tracing integration.
//
// The worker initializes a tracer provider at startup; pipeline runs and
// status server requests are wrapped in spans so slow dependencies show up
// with their retry and breaker context attached.
//
// Key features:
//   - Tracer provider setup with service name resource attributes
//   - HTTP middleware for the status server
//   - Cross-service trace propagation (W3C Trace Context)
//   - Span helpers for pipeline operations
//
// Example usage:
//
//	import "callguard/internal/observability/tracing"
//
//	func main() {
//	    shutdown := tracing.Init("callguard-worker")
//	    defer shutdown(context.Background())
//	}
//
//	func runPipeline(ctx context.Context) {
//	    ctx, span := tracing.StartSpan(ctx, "pipeline.run")
//	    defer span.End()
//	    // ... execute tasks ...
//	}
package tracing
