// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the application.
//
// Key features:
//   - JSON and text output formats
//   - Request ID propagation
//   - Context-aware logging
//   - Configurable log levels
//
// Example usage:
//
//	import "llmbridge/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("client started", slog.String("endpoint", "http://localhost:11434"))
//	}
//
//	func handleSend(requestID string) {
//	    logger := logging.WithRequestID(slog.Default(), requestID)
//	    logger.Info("dispatching request")
//	}
package logging
