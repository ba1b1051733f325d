// Package transport provides pluggable strategies for reaching the local
// LLM inference endpoint.
//
// Each strategy implements the Transport interface and returns a uniform
// AttemptResult for every outcome. Errors never cross the transport boundary:
// a refused connection, a timeout, a malformed body, and a non-2xx status all
// become failed AttemptResults with a machine-readable reason, so the
// orchestrator above can retry, back off, or fall back without error-type
// special cases.
//
// Two strategies are provided:
//   - UnixSocketTransport: HTTP over a Unix domain socket. Low overhead, but
//     structurally unavailable on platforms without Unix sockets or when no
//     socket path is configured. Unavailability is reported as a distinct
//     result so the orchestrator can skip it without a health penalty.
//   - HTTPTransport: HTTP over loopback TCP with a connect timeout that is
//     deliberately shorter than the per-attempt timeout, so a dead endpoint
//     is detected quickly while a slow-but-alive one gets the full budget.
//
// The wire format is the Ollama generate API: POST /api/generate with a JSON
// body {model, prompt, stream:false} and a JSON response carrying the
// generated text in the "response" field.
package transport
