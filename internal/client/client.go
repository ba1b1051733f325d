package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"llmbridge/internal/health"
	"llmbridge/internal/observability/tracing"
	"llmbridge/internal/transport"
)

// SkippedDescriptor is the method descriptor of a send that was
// short-circuited by the unhealthy-skip decision.
const SkippedDescriptor = "skipped_unhealthy"

// ExhaustedDescriptor is the method descriptor of a send whose retry budget
// was spent without success.
const ExhaustedDescriptor = "exhausted"

// Result is the only value Send ever returns. Failures are carried in Err;
// Send itself never returns an error and never panics.
type Result struct {
	// Success is true when the local endpoint produced a response.
	Success bool

	// Response holds the generated text on success.
	Response string

	// Err describes the failure when Success is false.
	Err error

	// TotalLatency is the wall-clock duration of the whole send,
	// including retries and backoff.
	TotalLatency time.Duration

	// MethodDescriptor identifies how the result was produced:
	// "<transport>_retry_<n>" on success, "skipped_unhealthy" on a health
	// skip, "exhausted" when the retry budget was spent.
	MethodDescriptor string
}

// Client is the resilient local-inference client. It is stateless across
// calls except for the health monitor it holds, so a single instance is
// safe for concurrent use by any number of callers.
type Client struct {
	monitor    *health.Monitor
	transports []transport.Transport
	model      string
	backoff    time.Duration
	backoffCap time.Duration
	observer   AttemptObserver

	// sleep is injectable so tests can verify backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a resilient client over the given transports, tried in order
// within each attempt. A nil observer disables event reporting.
func New(cfg Config, monitor *health.Monitor, transports []transport.Transport, observer AttemptObserver) *Client {
	if observer == nil {
		observer = NoopObserver{}
	}
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = DefaultBackoffBase
	}
	backoffCap := cfg.BackoffCap
	if backoffCap <= 0 {
		backoffCap = DefaultBackoffCap
	}

	return &Client{
		monitor:    monitor,
		transports: transports,
		model:      cfg.Model,
		backoff:    backoffBase,
		backoffCap: backoffCap,
		observer:   observer,
		sleep:      sleepContext,
	}
}

// Monitor returns the health monitor backing this client, for diagnostic
// surfaces and the operator reset action.
func (c *Client) Monitor() *health.Monitor {
	return c.monitor
}

// Send drives one request through the retry state machine.
//
// The caller's timeout bounds each attempt together with the monitor's
// recommendation: the effective per-attempt timeout is the smaller of the
// two. A callerTimeout of zero means "no caller preference".
//
// Cancellation of ctx is observed during transport I/O and backoff sleeps,
// is recorded into the health monitor, and yields a well-formed Result.
func (c *Client) Send(ctx context.Context, prompt, model string, callerTimeout time.Duration) Result {
	start := time.Now()
	requestID := uuid.NewString()

	ctx, span := tracing.StartSpan(ctx, "client.send")
	defer span.End()

	if c.monitor.ShouldSkipLocal() {
		// Reinforce the skip until an explicit reset or a later success
		// (e.g. via the background probe) clears it.
		c.monitor.RecordFailure(SkippedDescriptor)
		c.observer.OnSkip(requestID, c.monitor.Summary())
		span.SetAttributes(attribute.String("llm.method", SkippedDescriptor))

		return Result{
			Err:              fmt.Errorf("local endpoint skipped: recent failure rate too high"),
			TotalLatency:     time.Since(start),
			MethodDescriptor: SkippedDescriptor,
		}
	}

	effectiveTimeout := c.monitor.RecommendedTimeout()
	if callerTimeout > 0 && callerTimeout < effectiveTimeout {
		effectiveTimeout = callerTimeout
	}
	budget := c.monitor.RecommendedRetries()

	if model == "" {
		model = c.model
	}
	req := transport.RequestSpec{Prompt: prompt, Model: model}
	span.SetAttributes(
		attribute.String("llm.model", model),
		attribute.Int("llm.retry_budget", budget),
	)

	var lastFailure transport.AttemptResult
	attempted := false

	for attempt := 1; attempt <= budget; attempt++ {
		c.observer.OnAttempt(requestID, attempt, budget)

		triedThisAttempt := false
		for _, tr := range c.transports {
			result := tr.Attempt(ctx, req, effectiveTimeout)
			c.observer.OnTransportResult(requestID, attempt, result)

			if result.Unavailable() {
				// Structural, not evidential: no health penalty, no backoff,
				// move straight to the next transport.
				continue
			}
			attempted = true
			triedThisAttempt = true

			if result.Success {
				c.monitor.RecordSuccess(result.Latency)
				c.observer.OnSuccess(requestID, result.Transport, attempt, result.Latency)

				descriptor := fmt.Sprintf("%s_retry_%d", result.Transport, attempt)
				span.SetAttributes(attribute.String("llm.method", descriptor))
				return Result{
					Success:          true,
					Response:         result.Payload,
					TotalLatency:     time.Since(start),
					MethodDescriptor: descriptor,
				}
			}

			lastFailure = result
			if result.Reason == transport.ReasonCancelled {
				// The caller is gone; further attempts would fail the same way.
				return c.exhausted(span, requestID, start, attempt, lastFailure)
			}
		}

		if !triedThisAttempt {
			// Every transport was structurally unavailable this round;
			// waiting out the backoff would not change that.
			break
		}

		if attempt < budget {
			delay := Backoff(c.backoff, c.backoffCap, attempt)
			c.observer.OnBackoff(requestID, attempt, delay)
			if err := c.sleep(ctx, delay); err != nil {
				lastFailure = transport.AttemptResult{
					Reason:     transport.ReasonCancelled,
					ErrMessage: err.Error(),
				}
				return c.exhausted(span, requestID, start, attempt, lastFailure)
			}
		}
	}

	if !attempted {
		// Every transport was structurally unavailable: nothing evidential
		// happened, so the health window is left untouched.
		c.observer.OnExhausted(requestID, 0, "no transport available")
		span.SetAttributes(attribute.String("llm.method", ExhaustedDescriptor))
		return Result{
			Err:              fmt.Errorf("no transport available for local endpoint"),
			TotalLatency:     time.Since(start),
			MethodDescriptor: ExhaustedDescriptor,
		}
	}

	return c.exhausted(span, requestID, start, budget, lastFailure)
}

// exhausted records the terminal failure and builds the exhaustion Result.
func (c *Client) exhausted(span trace.Span, requestID string, start time.Time, attempts int, last transport.AttemptResult) Result {
	c.monitor.RecordFailure(string(last.Reason))
	c.observer.OnExhausted(requestID, attempts, last.ErrMessage)
	span.SetAttributes(attribute.String("llm.method", ExhaustedDescriptor))

	return Result{
		Err: fmt.Errorf("local endpoint unreachable after %d attempts: %s",
			attempts, last.ErrMessage),
		TotalLatency:     time.Since(start),
		MethodDescriptor: ExhaustedDescriptor,
	}
}

// sleepContext sleeps for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
