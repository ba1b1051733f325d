// Package health tracks the recent reliability of the local inference endpoint
// and turns it into actionable policy for the resilient client.
//
// The monitor keeps a bounded rolling window of attempt outcomes. Every policy
// read (skip decision, recommended timeout, recommended retry budget) is
// recomputed from the window so there is no stale cached state. Under poor
// health the policy fails fast: shorter timeouts and fewer retries, so the
// caller reaches its remote fallback quickly instead of burning its time
// budget on a dead endpoint.
//
// The package supports:
//   - Rolling-window success/failure bookkeeping with bounded memory
//   - A circuit-breaker-like skip decision guarded by a minimum sample count
//   - Adaptive timeout and retry recommendations, clamped to safe ranges
//   - A diagnostic summary string for operator tooling
//
// Usage Example:
//
//	monitor := health.NewMonitor(health.DefaultConfig(), nil)
//	monitor.RecordFailure("timeout")
//	if monitor.ShouldSkipLocal() {
//	    // go straight to the remote fallback
//	}
package health
