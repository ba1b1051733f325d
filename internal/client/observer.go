package client

import (
	"log/slog"
	"time"

	"llmbridge/internal/observability/logging"
	"llmbridge/internal/transport"
)

// AttemptObserver receives lifecycle events from the send state machine.
// Logging and telemetry are implemented behind this interface rather than
// interleaved with control flow, so tests assert on emitted events instead
// of parsed log strings.
//
// Implementations must be safe for concurrent use; multiple sends may be
// in flight at once.
type AttemptObserver interface {
	// OnSkip fires when a send is short-circuited by the unhealthy-skip
	// decision, before any network I/O.
	OnSkip(requestID, healthSummary string)

	// OnAttempt fires at the start of each attempt in the retry loop.
	OnAttempt(requestID string, attempt, budget int)

	// OnTransportResult fires after each transport produces a result,
	// including the distinct unavailable result.
	OnTransportResult(requestID string, attempt int, result transport.AttemptResult)

	// OnBackoff fires before sleeping between failed attempts.
	OnBackoff(requestID string, attempt int, delay time.Duration)

	// OnSuccess fires when a transport attempt succeeds.
	OnSuccess(requestID, transportName string, attempt int, latency time.Duration)

	// OnExhausted fires when the retry budget is spent without success.
	OnExhausted(requestID string, attempts int, lastError string)
}

// NoopObserver discards all events.
type NoopObserver struct{}

func (NoopObserver) OnSkip(string, string) {}

func (NoopObserver) OnAttempt(string, int, int) {}

func (NoopObserver) OnTransportResult(string, int, transport.AttemptResult) {}

func (NoopObserver) OnBackoff(string, int, time.Duration) {}

func (NoopObserver) OnSuccess(string, string, int, time.Duration) {}

func (NoopObserver) OnExhausted(string, int, string) {}

// SlogObserver logs every event through a structured logger.
// This is the production observer.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver creates an observer backed by the given logger.
// A nil logger falls back to slog.Default().
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnSkip(requestID, healthSummary string) {
	logging.WithRequestID(o.logger, requestID).Warn(
		"local endpoint skipped, recent failure rate too high",
		slog.String("health", healthSummary))
}

func (o *SlogObserver) OnAttempt(requestID string, attempt, budget int) {
	logging.WithRequestID(o.logger, requestID).Debug("attempting local endpoint",
		slog.Int("attempt", attempt),
		slog.Int("budget", budget))
}

func (o *SlogObserver) OnTransportResult(requestID string, attempt int, result transport.AttemptResult) {
	if result.Success {
		return
	}
	logger := logging.WithRequestID(o.logger, requestID)
	if result.Unavailable() {
		logger.Debug("transport unavailable, trying next",
			slog.String("transport", result.Transport),
			slog.String("detail", result.ErrMessage))
		return
	}
	logger.Warn("transport attempt failed",
		slog.String("transport", result.Transport),
		slog.Int("attempt", attempt),
		slog.String("reason", string(result.Reason)),
		slog.String("error", result.ErrMessage))
}

func (o *SlogObserver) OnBackoff(requestID string, attempt int, delay time.Duration) {
	logging.WithRequestID(o.logger, requestID).Debug("backing off before next attempt",
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay))
}

func (o *SlogObserver) OnSuccess(requestID, transportName string, attempt int, latency time.Duration) {
	logging.WithRequestID(o.logger, requestID).Info("local endpoint responded",
		slog.String("transport", transportName),
		slog.Int("attempt", attempt),
		slog.Duration("latency", latency))
}

func (o *SlogObserver) OnExhausted(requestID string, attempts int, lastError string) {
	logging.WithRequestID(o.logger, requestID).Error(
		"local endpoint unreachable, retry budget spent",
		slog.Int("attempts", attempts),
		slog.String("last_error", lastError))
}
