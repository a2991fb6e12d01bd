// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the application.
//
// Key features:
//   - JSON and text output formats
//   - Request ID propagation for the status server
//   - Run-scoped loggers carried through pipeline contexts
//   - Configurable log levels via LOG_LEVEL
//
// Example usage:
//
//	import "callguard/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("worker started", slog.String("schedule", "*/30 * * * *"))
//	}
//
//	func runTask(ctx context.Context) {
//	    logger := logging.FromContext(ctx)
//	    logger.Info("task started")
//	}
package logging
