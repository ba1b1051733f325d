package client

import "time"

// Default backoff parameters. The base is multiplied by the square of the
// attempt index, so small retry budgets keep a bounded worst-case wait while
// later attempts are still spaced well apart.
const (
	// DefaultBackoffBase is the delay after the first failed attempt.
	DefaultBackoffBase = 1 * time.Second

	// DefaultBackoffCap bounds the delay regardless of attempt index.
	DefaultBackoffCap = 10 * time.Second
)

// Backoff returns the delay to sleep after the given failed attempt, before
// the next one. The delay grows quadratically with the attempt index
// (base, 4*base, 9*base, ...) and is capped at max.
//
// It is a pure function, independently testable from any I/O.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if max <= 0 {
		max = DefaultBackoffCap
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := base * time.Duration(attempt*attempt)
	if delay > max {
		delay = max
	}
	return delay
}
