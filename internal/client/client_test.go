package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmbridge/internal/health"
	"llmbridge/internal/transport"
)

// fakeTransport returns scripted results in order, repeating the last one
// when the script runs out. It records the timeouts it was handed.
type fakeTransport struct {
	mu       sync.Mutex
	name     string
	script   []transport.AttemptResult
	calls    int
	timeouts []time.Duration
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Attempt(_ context.Context, _ transport.RequestSpec, timeout time.Duration) transport.AttemptResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.timeouts = append(f.timeouts, timeout)
	idx := f.calls
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	f.calls++

	result := f.script[idx]
	result.Transport = f.name
	return result
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func unavailable() transport.AttemptResult {
	return transport.AttemptResult{Reason: transport.ReasonUnavailable, ErrMessage: "no socket"}
}

func refused() transport.AttemptResult {
	return transport.AttemptResult{Reason: transport.ReasonConnectionRefused, ErrMessage: "connection refused"}
}

func succeeds(payload string) transport.AttemptResult {
	return transport.AttemptResult{Success: true, Payload: payload, Latency: 42 * time.Millisecond}
}

// spyObserver records emitted events for assertions.
type spyObserver struct {
	mu        sync.Mutex
	skips     int
	attempts  int
	backoffs  []time.Duration
	successes int
	exhausted int
}

func (s *spyObserver) OnSkip(string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skips++
}

func (s *spyObserver) OnAttempt(string, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
}

func (s *spyObserver) OnTransportResult(string, int, transport.AttemptResult) {}

func (s *spyObserver) OnBackoff(_ string, _ int, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backoffs = append(s.backoffs, delay)
}

func (s *spyObserver) OnSuccess(string, string, int, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successes++
}

func (s *spyObserver) OnExhausted(string, int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exhausted++
}

// newTestClient builds a client with instant sleeps, recording delays into
// the returned slice.
func newTestClient(t *testing.T, monitor *health.Monitor, observer AttemptObserver, transports ...transport.Transport) (*Client, *[]time.Duration) {
	t.Helper()

	cfg := Config{
		BaseURL:     "http://localhost:11434",
		Model:       "gemma3:latest",
		BackoffBase: 1 * time.Second,
		BackoffCap:  10 * time.Second,
	}
	c := New(cfg, monitor, transports, observer)

	var slept []time.Duration
	var mu sync.Mutex
	c.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
		return ctx.Err()
	}
	return c, &slept
}

func TestSend_SuccessFirstAttempt(t *testing.T) {
	monitor := health.NewMonitor(health.DefaultConfig(), nil)
	httpT := &fakeTransport{name: "http", script: []transport.AttemptResult{succeeds("hello there")}}
	c, slept := newTestClient(t, monitor, nil, httpT)

	result := c.Send(context.Background(), "hi", "", 0)

	assert.True(t, result.Success)
	assert.Equal(t, "hello there", result.Response)
	assert.Equal(t, "http_retry_1", result.MethodDescriptor)
	assert.NoError(t, result.Err)
	assert.Empty(t, *slept, "no backoff after an immediate success")

	stats := monitor.Stats()
	assert.Equal(t, 1, stats.WindowSize, "exactly one outcome recorded")
	assert.Equal(t, 0, stats.Failures)
}

// The fast transport reports structural unavailability; it is skipped with
// no penalty and the HTTP transport succeeds on the second attempt.
func TestSend_UnavailableTransportFallsThroughSameAttempt(t *testing.T) {
	monitor := health.NewMonitor(health.DefaultConfig(), nil)
	unixT := &fakeTransport{name: "unix", script: []transport.AttemptResult{unavailable()}}
	httpT := &fakeTransport{name: "http", script: []transport.AttemptResult{refused(), succeeds("ok")}}
	obs := &spyObserver{}
	c, slept := newTestClient(t, monitor, obs, unixT, httpT)

	result := c.Send(context.Background(), "hi", "", 0)

	require.True(t, result.Success)
	assert.Equal(t, "http_retry_2", result.MethodDescriptor)
	assert.Equal(t, 2, unixT.callCount(), "unix tried once per attempt")
	assert.Equal(t, 2, httpT.callCount())
	assert.Equal(t, []time.Duration{1 * time.Second}, *slept, "one backoff between the two attempts")
	assert.Equal(t, 1, obs.successes)

	stats := monitor.Stats()
	assert.Equal(t, 1, stats.WindowSize, "success recorded exactly once, unavailability not recorded")
	assert.Equal(t, 0, stats.Failures)
}

// Both transports fail for the whole budget: quadratic backoff between
// attempts (1s, 4s), none after the last, and a single failure recorded.
func TestSend_Exhaustion(t *testing.T) {
	monitor := health.NewMonitor(health.DefaultConfig(), nil)
	unixT := &fakeTransport{name: "unix", script: []transport.AttemptResult{unavailable()}}
	httpT := &fakeTransport{name: "http", script: []transport.AttemptResult{refused()}}
	obs := &spyObserver{}
	c, slept := newTestClient(t, monitor, obs, unixT, httpT)

	result := c.Send(context.Background(), "hi", "", 0)

	assert.False(t, result.Success)
	assert.Equal(t, ExhaustedDescriptor, result.MethodDescriptor)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "after 3 attempts")
	assert.Contains(t, result.Err.Error(), "connection refused")
	assert.Equal(t, []time.Duration{1 * time.Second, 4 * time.Second}, *slept,
		"quadratic backoff, no sleep after the final attempt")
	assert.Equal(t, 1, obs.exhausted)
	assert.Equal(t, 3, obs.attempts)

	stats := monitor.Stats()
	assert.Equal(t, 1, stats.WindowSize, "exactly one failure recorded for the terminal call")
	assert.Equal(t, 1, stats.Failures)
	assert.Equal(t, string(transport.ReasonConnectionRefused), stats.LastError)
}

// The caller's budget is smaller than the monitor's recommendation and wins.
func TestSend_CallerTimeoutWins(t *testing.T) {
	monitor := health.NewMonitor(health.DefaultConfig(), nil)
	httpT := &fakeTransport{name: "http", script: []transport.AttemptResult{succeeds("ok")}}
	c, _ := newTestClient(t, monitor, nil, httpT)

	require.Greater(t, monitor.RecommendedTimeout(), 500*time.Millisecond)
	c.Send(context.Background(), "hi", "", 500*time.Millisecond)

	require.Len(t, httpT.timeouts, 1)
	assert.Equal(t, 500*time.Millisecond, httpT.timeouts[0])
}

func TestSend_RecommendedTimeoutWinsOverLargerCallerBudget(t *testing.T) {
	monitor := health.NewMonitor(health.DefaultConfig(), nil)
	httpT := &fakeTransport{name: "http", script: []transport.AttemptResult{succeeds("ok")}}
	c, _ := newTestClient(t, monitor, nil, httpT)

	recommended := monitor.RecommendedTimeout()
	c.Send(context.Background(), "hi", "", recommended+time.Minute)

	require.Len(t, httpT.timeouts, 1)
	assert.Equal(t, recommended, httpT.timeouts[0])
}

// An unhealthy endpoint is skipped without any transport I/O and the skip
// itself reinforces the unhealthy window.
func TestSend_SkipsUnhealthyEndpoint(t *testing.T) {
	cfg := health.DefaultConfig()
	cfg.MinSamples = 3
	monitor := health.NewMonitor(cfg, nil)
	for i := 0; i < 5; i++ {
		monitor.RecordFailure("timeout")
	}

	httpT := &fakeTransport{name: "http", script: []transport.AttemptResult{succeeds("ok")}}
	obs := &spyObserver{}
	c, slept := newTestClient(t, monitor, obs, httpT)

	start := time.Now()
	result := c.Send(context.Background(), "hi", "", 0)
	elapsed := time.Since(start)

	assert.False(t, result.Success)
	assert.Equal(t, SkippedDescriptor, result.MethodDescriptor)
	assert.Error(t, result.Err)
	assert.Equal(t, 0, httpT.callCount(), "no network I/O on a skip")
	assert.Empty(t, *slept)
	assert.Less(t, elapsed, 100*time.Millisecond, "skip must return within milliseconds")
	assert.Equal(t, 1, obs.skips)

	// The skip appended one more failure, reinforcing the decision.
	assert.Equal(t, 6, monitor.Stats().WindowSize)
	assert.Equal(t, SkippedDescriptor, monitor.Stats().LastError)
}

func TestSend_SkipClearedByReset(t *testing.T) {
	cfg := health.DefaultConfig()
	monitor := health.NewMonitor(cfg, nil)
	for i := 0; i < 5; i++ {
		monitor.RecordFailure("timeout")
	}

	httpT := &fakeTransport{name: "http", script: []transport.AttemptResult{succeeds("ok")}}
	c, _ := newTestClient(t, monitor, nil, httpT)

	require.Equal(t, SkippedDescriptor, c.Send(context.Background(), "hi", "", 0).MethodDescriptor)

	monitor.Reset()
	result := c.Send(context.Background(), "hi", "", 0)

	assert.True(t, result.Success)
	assert.Equal(t, "http_retry_1", result.MethodDescriptor)
}

func TestSend_CancelledTransportAbortsRetryLoop(t *testing.T) {
	monitor := health.NewMonitor(health.DefaultConfig(), nil)
	httpT := &fakeTransport{name: "http", script: []transport.AttemptResult{{
		Reason:     transport.ReasonCancelled,
		ErrMessage: "context canceled",
	}}}
	c, slept := newTestClient(t, monitor, nil, httpT)

	result := c.Send(context.Background(), "hi", "", 0)

	assert.False(t, result.Success)
	assert.Equal(t, 1, httpT.callCount(), "no further attempts once the caller is gone")
	assert.Empty(t, *slept)

	stats := monitor.Stats()
	assert.Equal(t, 1, stats.WindowSize)
	assert.Equal(t, string(transport.ReasonCancelled), stats.LastError)
}

func TestSend_CancelledDuringBackoff(t *testing.T) {
	monitor := health.NewMonitor(health.DefaultConfig(), nil)
	httpT := &fakeTransport{name: "http", script: []transport.AttemptResult{refused()}}
	c, _ := newTestClient(t, monitor, nil, httpT)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// The injected sleep returns ctx.Err(), which is non-nil here.
	result := c.Send(ctx, "hi", "", 0)

	assert.False(t, result.Success)
	assert.Equal(t, 1, httpT.callCount())
	assert.Equal(t, string(transport.ReasonCancelled), monitor.Stats().LastError)
}

// With every transport structurally unavailable nothing evidential happened,
// so the health window stays untouched.
func TestSend_AllTransportsUnavailable(t *testing.T) {
	monitor := health.NewMonitor(health.DefaultConfig(), nil)
	unixT := &fakeTransport{name: "unix", script: []transport.AttemptResult{unavailable()}}
	c, slept := newTestClient(t, monitor, nil, unixT)

	result := c.Send(context.Background(), "hi", "", 0)

	assert.False(t, result.Success)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "no transport available")
	assert.Equal(t, 0, monitor.Stats().WindowSize)
	assert.Empty(t, *slept, "unavailability carries no backoff penalty")
}

func TestSend_DefaultModelApplied(t *testing.T) {
	monitor := health.NewMonitor(health.DefaultConfig(), nil)

	var gotModel string
	tr := transportFunc(func(_ context.Context, req transport.RequestSpec, _ time.Duration) transport.AttemptResult {
		gotModel = req.Model
		return succeeds("ok")
	})
	c, _ := newTestClient(t, monitor, nil, tr)

	c.Send(context.Background(), "hi", "", 0)
	assert.Equal(t, "gemma3:latest", gotModel)

	c.Send(context.Background(), "hi", "qwen2.5:3b", 0)
	assert.Equal(t, "qwen2.5:3b", gotModel)
}

func TestSend_ConcurrentCalls(t *testing.T) {
	monitor := health.NewMonitor(health.DefaultConfig(), nil)
	httpT := &fakeTransport{name: "http", script: []transport.AttemptResult{succeeds("ok")}}
	c, _ := newTestClient(t, monitor, nil, httpT)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := c.Send(context.Background(), "hi", "", 0)
			if !result.Success {
				t.Error("expected success")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, httpT.callCount())
}

// transportFunc adapts a function into a transport.Transport.
type transportFunc func(ctx context.Context, req transport.RequestSpec, timeout time.Duration) transport.AttemptResult

func (f transportFunc) Name() string { return "func" }

func (f transportFunc) Attempt(ctx context.Context, req transport.RequestSpec, timeout time.Duration) transport.AttemptResult {
	return f(ctx, req, timeout)
}
