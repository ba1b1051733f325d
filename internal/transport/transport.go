package transport

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"
)

// Reason classifies why a transport attempt failed.
type Reason string

const (
	// ReasonUnavailable means the transport is structurally unable to run on
	// this runtime (e.g. no Unix sockets, no socket path configured).
	// Unavailable results are excluded from health accounting.
	ReasonUnavailable Reason = "unavailable"

	// ReasonConnectionRefused means the endpoint actively refused or the
	// connection could not be established.
	ReasonConnectionRefused Reason = "connection_refused"

	// ReasonTimeout means the attempt exceeded its timeout.
	ReasonTimeout Reason = "timeout"

	// ReasonMalformedResponse means the endpoint answered with a body that
	// could not be parsed as a generate response.
	ReasonMalformedResponse Reason = "malformed_response"

	// ReasonServerError means the endpoint answered with a non-2xx status.
	ReasonServerError Reason = "server_error"

	// ReasonCancelled means the caller's context was cancelled mid-attempt.
	ReasonCancelled Reason = "cancelled"
)

// RequestSpec describes a single generation request. It is immutable per call.
type RequestSpec struct {
	// Prompt is the text sent to the model.
	Prompt string

	// Model is the model identifier understood by the local endpoint.
	Model string
}

// AttemptResult is the uniform outcome of one transport attempt.
// A transport never returns an error; every failure mode is encoded here.
type AttemptResult struct {
	// Success is true when the endpoint produced a usable response.
	Success bool

	// Payload holds the generated text on success.
	Payload string

	// Reason classifies the failure. Empty on success.
	Reason Reason

	// ErrMessage is a human-readable failure description for diagnostics.
	ErrMessage string

	// Latency is the observed duration of the attempt.
	Latency time.Duration

	// Transport is the name of the strategy that produced this result.
	Transport string
}

// Unavailable reports whether this result signals a structurally unavailable
// transport rather than a genuine failure.
func (r AttemptResult) Unavailable() bool {
	return !r.Success && r.Reason == ReasonUnavailable
}

// Transport is a concrete mechanism for attempting communication with the
// local endpoint. Implementations are stateless apart from immutable
// configuration and are safe for concurrent reuse across calls.
type Transport interface {
	// Name returns a short lowercase identifier used in method descriptors
	// and logs (e.g. "unix", "http").
	Name() string

	// Attempt issues one request with the given per-attempt timeout.
	// It never panics and never returns an error; every outcome is an
	// AttemptResult. Cancellation of ctx aborts the in-flight request.
	Attempt(ctx context.Context, req RequestSpec, timeout time.Duration) AttemptResult
}

// successResult builds a successful AttemptResult.
func successResult(name, payload string, latency time.Duration) AttemptResult {
	return AttemptResult{
		Success:   true,
		Payload:   payload,
		Latency:   latency,
		Transport: name,
	}
}

// failureResult builds a failed AttemptResult.
func failureResult(name string, reason Reason, message string, latency time.Duration) AttemptResult {
	return AttemptResult{
		Reason:     reason,
		ErrMessage: message,
		Latency:    latency,
		Transport:  name,
	}
}

// unavailableResult builds the distinct structural-unavailability result.
func unavailableResult(name, message string) AttemptResult {
	return failureResult(name, ReasonUnavailable, message, 0)
}

// classifyError maps a transport-level error onto the failure taxonomy.
func classifyError(err error) Reason {
	if errors.Is(err, context.Canceled) {
		return ReasonCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return ReasonConnectionRefused
	}

	// Anything else at this layer is a connection-level problem.
	return ReasonConnectionRefused
}
