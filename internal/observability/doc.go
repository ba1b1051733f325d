// Package observability provides production-grade observability infrastructure
// including structured logging and OpenTelemetry tracing.
//
// This package centralizes observability concerns to enable:
//   - Structured logging with context propagation
//   - Span-level tracing of send operations and transport attempts
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - tracing: OpenTelemetry tracing integration
//
// Prometheus metrics are deliberately kept next to the components they
// describe (see internal/health and internal/fallback) behind small recorder
// interfaces so tests can inject mocks.
//
// Example usage:
//
//	import "llmbridge/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("client started")
//	}
package observability
