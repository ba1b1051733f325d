// Package tracing provides OpenTelemetry tracing integration.
//
// This package provides distributed tracing for the local-inference client
// using OpenTelemetry. Spans are created around each send operation and each
// transport attempt so a slow or failing request can be broken down by phase.
//
// Example usage:
//
//	import "llmbridge/internal/observability/tracing"
//
//	func (c *Client) Send(ctx context.Context, req Request) Result {
//	    ctx, span := tracing.StartSpan(ctx, "client.send")
//	    defer span.End()
//	    // ... drive the attempt loop ...
//	}
package tracing
