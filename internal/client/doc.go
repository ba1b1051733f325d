// Package client implements the resilient local-inference client.
//
// The client composes a health monitor with an ordered list of transport
// strategies into a per-request retry state machine:
//
//	check health -> (skip | attempt loop) -> (success | exhausted)
//
// Before any I/O the health monitor is consulted; a known-unhealthy endpoint
// is skipped outright so the caller can reach its remote fallback within
// milliseconds instead of burning its time budget. Otherwise the client runs
// a bounded attempt loop, trying the low-overhead transport first and the
// HTTP transport second within each attempt, with quadratic backoff between
// failed attempts.
//
// Send never returns an error and never panics: every path yields a Result,
// making it safe to call from event-driven code without a surrounding guard.
// Exactly one outcome per terminal call is recorded into the health monitor.
//
// Logging is decoupled from control flow through the AttemptObserver
// interface; tests assert on emitted events rather than parsed log output.
package client
