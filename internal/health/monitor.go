package health

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// State describes the derived health of the local endpoint.
// It is recomputed from the rolling window on every read and never stored.
type State int

const (
	// StateHealthy means the endpoint is responding normally, or there is
	// not yet enough evidence to say otherwise.
	StateHealthy State = iota

	// StateDegraded means a noticeable share of recent attempts failed.
	StateDegraded

	// StateUnhealthy means recent failures crossed the skip threshold.
	StateUnhealthy
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Config holds the configuration for a health monitor.
type Config struct {
	// WindowCapacity is the maximum number of attempt records kept.
	// The oldest record is evicted when the window is full.
	WindowCapacity int

	// MinSamples is the minimum number of records required before the
	// skip decision may fire. Prevents skipping on insufficient evidence.
	MinSamples int

	// SkipThreshold is the failure ratio at or above which the local
	// endpoint is skipped entirely. For example, 0.7 means 70%.
	SkipThreshold float64

	// DegradedThreshold is the failure ratio at or above which the derived
	// state becomes degraded. Must not exceed SkipThreshold.
	DegradedThreshold float64

	// BaseTimeout is the per-attempt timeout recommended under full health.
	BaseTimeout time.Duration

	// MinTimeout is the floor for the recommended timeout.
	MinTimeout time.Duration

	// MaxTimeout is the ceiling for the recommended timeout.
	MaxTimeout time.Duration

	// MaxRetries is the retry budget recommended under full health.
	MaxRetries int
}

// DefaultConfig returns the default health monitor configuration.
func DefaultConfig() Config {
	return Config{
		WindowCapacity:    20,
		MinSamples:        3,
		SkipThreshold:     0.7,
		DegradedThreshold: 0.3,
		BaseTimeout:       30 * time.Second,
		MinTimeout:        5 * time.Second,
		MaxTimeout:        60 * time.Second,
		MaxRetries:        3,
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.WindowCapacity <= 0 {
		return fmt.Errorf("window capacity must be positive, got %d", c.WindowCapacity)
	}
	if c.MinSamples <= 0 {
		return fmt.Errorf("min samples must be positive, got %d", c.MinSamples)
	}
	if c.MinSamples > c.WindowCapacity {
		return fmt.Errorf("min samples (%d) cannot exceed window capacity (%d)", c.MinSamples, c.WindowCapacity)
	}
	if c.SkipThreshold <= 0 || c.SkipThreshold > 1 {
		return fmt.Errorf("skip threshold must be in (0, 1], got %v", c.SkipThreshold)
	}
	if c.DegradedThreshold <= 0 || c.DegradedThreshold > c.SkipThreshold {
		return fmt.Errorf("degraded threshold must be in (0, %v], got %v", c.SkipThreshold, c.DegradedThreshold)
	}
	if c.BaseTimeout <= 0 {
		return fmt.Errorf("base timeout must be positive, got %v", c.BaseTimeout)
	}
	if c.MinTimeout <= 0 || c.MinTimeout > c.MaxTimeout {
		return fmt.Errorf("invalid timeout clamp [%v, %v]", c.MinTimeout, c.MaxTimeout)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1, got %d", c.MaxRetries)
	}
	return nil
}

// attemptRecord is a single immutable entry in the rolling window.
type attemptRecord struct {
	timestamp time.Time
	success   bool
	latency   time.Duration // zero for failures
	reason    string        // empty for successes
}

// Monitor converts a rolling history of local-endpoint outcomes into policy.
//
// All methods are safe for concurrent use. The window is the only shared
// mutable state in the subsystem and every mutation is serialized here, so
// concurrent request completions cannot corrupt it. Policy reads are a
// best-effort heuristic over whatever the window holds at that instant,
// not a linearizable ledger.
type Monitor struct {
	mu      sync.Mutex
	cfg     Config
	window  []attemptRecord
	now     func() time.Time
	metrics MetricsRecorder
}

// NewMonitor creates a health monitor with the given configuration.
// A nil recorder disables metrics. Invalid configurations fall back to
// DefaultConfig so a monitor is always usable.
func NewMonitor(cfg Config, recorder MetricsRecorder) *Monitor {
	if err := cfg.Validate(); err != nil {
		cfg = DefaultConfig()
	}
	if recorder == nil {
		recorder = NoopMetrics{}
	}
	return &Monitor{
		cfg:     cfg,
		window:  make([]attemptRecord, 0, cfg.WindowCapacity),
		now:     time.Now,
		metrics: recorder,
	}
}

// RecordSuccess appends a successful attempt with its observed latency.
// The oldest record is evicted if the window is at capacity.
func (m *Monitor) RecordSuccess(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.append(attemptRecord{
		timestamp: m.now(),
		success:   true,
		latency:   latency,
	})
	m.metrics.RecordAttempt(true)
	m.publishGauges()
}

// RecordFailure appends a failed attempt with a short machine-readable reason
// (e.g. "timeout", "connection_refused", "skipped_unhealthy").
// The oldest record is evicted if the window is at capacity.
func (m *Monitor) RecordFailure(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.append(attemptRecord{
		timestamp: m.now(),
		success:   false,
		reason:    reason,
	})
	m.metrics.RecordAttempt(false)
	m.publishGauges()
}

// append adds the record and evicts from the front when over capacity.
// Caller must hold the mutex.
func (m *Monitor) append(rec attemptRecord) {
	m.window = append(m.window, rec)
	if len(m.window) > m.cfg.WindowCapacity {
		// Shift rather than re-slice so the backing array does not pin
		// evicted records and the capacity stays bounded.
		copy(m.window, m.window[1:])
		m.window = m.window[:m.cfg.WindowCapacity]
	}
}

// publishGauges refreshes derived gauges. Caller must hold the mutex.
func (m *Monitor) publishGauges() {
	rate, _ := m.failureRate()
	m.metrics.SetFailureRate(rate)
	m.metrics.SetWindowSize(len(m.window))
}

// countsLocked returns failure and sample counts. Caller must hold the mutex.
func (m *Monitor) countsLocked() (failures, samples int) {
	samples = len(m.window)
	for _, rec := range m.window {
		if !rec.success {
			failures++
		}
	}
	return failures, samples
}

// failureRate returns the failure ratio over the current window and the
// sample count. Caller must hold the mutex.
func (m *Monitor) failureRate() (float64, int) {
	failures, samples := m.countsLocked()
	if samples == 0 {
		return 0, 0
	}
	return float64(failures) / float64(samples), samples
}

// ShouldSkipLocal reports whether the local endpoint should be skipped
// entirely. It is true only when the window holds at least MinSamples
// records and the failure rate is at or above the skip threshold.
func (m *Monitor) ShouldSkipLocal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rate, samples := m.failureRate()
	skip := samples >= m.cfg.MinSamples && rate >= m.cfg.SkipThreshold
	if skip {
		m.metrics.RecordSkip()
	}
	return skip
}

// RecommendedTimeout returns the per-attempt timeout to use right now.
// The base timeout is scaled down linearly as the failure rate rises so a
// struggling endpoint is given less time, clamped to [MinTimeout, MaxTimeout].
// It is monotone non-increasing in the failure rate.
func (m *Monitor) RecommendedTimeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	rate, samples := m.failureRate()
	timeout := m.cfg.BaseTimeout
	if samples >= m.cfg.MinSamples {
		timeout = time.Duration(float64(m.cfg.BaseTimeout) * (1 - rate))
	}

	if timeout < m.cfg.MinTimeout {
		timeout = m.cfg.MinTimeout
	}
	if timeout > m.cfg.MaxTimeout {
		timeout = m.cfg.MaxTimeout
	}
	return timeout
}

// RecommendedRetries returns the retry budget to use right now.
// Fewer retries are recommended under poor health (fail fast), clamped to
// [1, MaxRetries]. It is monotone non-increasing in the failure rate.
func (m *Monitor) RecommendedRetries() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	rate, samples := m.failureRate()
	retries := m.cfg.MaxRetries
	if samples >= m.cfg.MinSamples {
		retries = m.cfg.MaxRetries - int(rate*float64(m.cfg.MaxRetries))
	}

	if retries < 1 {
		retries = 1
	}
	if retries > m.cfg.MaxRetries {
		retries = m.cfg.MaxRetries
	}
	return retries
}

// State derives the current health state from the window.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// stateLocked derives the state. Caller must hold the mutex.
func (m *Monitor) stateLocked() State {
	rate, samples := m.failureRate()
	if samples < m.cfg.MinSamples {
		return StateHealthy
	}
	switch {
	case rate >= m.cfg.SkipThreshold:
		return StateUnhealthy
	case rate >= m.cfg.DegradedThreshold:
		return StateDegraded
	default:
		return StateHealthy
	}
}

// Snapshot is a point-in-time view of the monitor for diagnostics.
type Snapshot struct {
	State       State   `json:"state"`
	WindowSize  int     `json:"window_size"`
	Capacity    int     `json:"capacity"`
	Failures    int     `json:"failures"`
	FailureRate float64 `json:"failure_rate"`
	SkipActive  bool    `json:"skip_active"`
	LastError   string  `json:"last_error,omitempty"`
}

// Stats returns a point-in-time snapshot for diagnostic endpoints.
// It is observability only and is never consulted for control flow.
func (m *Monitor) Stats() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	failures, samples := m.countsLocked()
	rate, _ := m.failureRate()

	lastError := ""
	for i := len(m.window) - 1; i >= 0; i-- {
		if !m.window[i].success {
			lastError = m.window[i].reason
			break
		}
	}

	return Snapshot{
		State:       m.stateLocked(),
		WindowSize:  samples,
		Capacity:    m.cfg.WindowCapacity,
		Failures:    failures,
		FailureRate: rate,
		SkipActive:  samples >= m.cfg.MinSamples && rate >= m.cfg.SkipThreshold,
		LastError:   lastError,
	}
}

// Summary returns a human-readable diagnostic line for operator tooling.
// It is observability only and is never consulted for control flow.
func (m *Monitor) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	rate, samples := m.failureRate()

	var latencies []string
	var lastError string
	for _, rec := range m.window {
		if rec.success {
			latencies = append(latencies, fmt.Sprintf("%dms", rec.latency.Milliseconds()))
		} else {
			lastError = rec.reason
		}
	}
	// Only the most recent few latencies are interesting.
	if len(latencies) > 5 {
		latencies = latencies[len(latencies)-5:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "state=%s window=%d/%d failure_rate=%.0f%%",
		m.stateLocked(), samples, m.cfg.WindowCapacity, rate*100)
	if len(latencies) > 0 {
		fmt.Fprintf(&b, " recent_latencies=[%s]", strings.Join(latencies, " "))
	}
	if lastError != "" {
		fmt.Fprintf(&b, " last_error=%q", lastError)
	}
	return b.String()
}

// Reset clears the window. Policy reads after a reset return the same
// values as a freshly constructed monitor. Intended for an explicit
// "retry connection" operator action.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.window = m.window[:0]
	m.publishGauges()
}
