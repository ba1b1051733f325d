package health

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRecorder defines the interface for recording endpoint health metrics.
// This interface abstracts the metrics recording implementation, enabling:
//   - Mocking in unit tests (inject mock recorder instead of Prometheus)
//   - Swapping metrics systems (DataDog, New Relic, OpenTelemetry, etc.)
//
// For testing with mocks:
//
//	type mockRecorder struct {
//	    attempts []bool
//	}
//
//	func (m *mockRecorder) RecordAttempt(success bool) {
//	    m.attempts = append(m.attempts, success)
//	}
type MetricsRecorder interface {
	// RecordAttempt counts a local-endpoint attempt outcome.
	RecordAttempt(success bool)

	// RecordSkip increments the counter of requests short-circuited by the
	// unhealthy-skip decision.
	RecordSkip()

	// SetFailureRate publishes the current rolling-window failure ratio (0.0-1.0).
	SetFailureRate(rate float64)

	// SetWindowSize publishes the current number of records in the window.
	SetWindowSize(n int)
}

// NoopMetrics is a MetricsRecorder that discards all observations.
// Used when metrics are disabled or in tests that do not assert on them.
type NoopMetrics struct{}

func (NoopMetrics) RecordAttempt(bool) {}

func (NoopMetrics) RecordSkip() {}

func (NoopMetrics) SetFailureRate(float64) {}

func (NoopMetrics) SetWindowSize(int) {}

// PrometheusMetrics implements MetricsRecorder using Prometheus metrics.
// This is the production implementation.
type PrometheusMetrics struct {
	attemptsTotal    *prometheus.CounterVec
	skipsTotal       prometheus.Counter
	failureRateGauge prometheus.Gauge
	windowSizeGauge  prometheus.Gauge
}

var (
	prometheusMetricsInstance *PrometheusMetrics
	prometheusMetricsOnce     sync.Once
)

// getOrCreateCounterVec gets an existing counter vec or creates a new one if it doesn't exist.
func getOrCreateCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		return promauto.NewCounterVec(opts, labels)
	}
	return c
}

// getOrCreateCounter gets an existing counter or creates a new one if it doesn't exist.
func getOrCreateCounter(opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Counter)
		}
		return promauto.NewCounter(opts)
	}
	return c
}

// getOrCreateGauge gets an existing gauge or creates a new one if it doesn't exist.
func getOrCreateGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	if err := prometheus.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Gauge)
		}
		return promauto.NewGauge(opts)
	}
	return g
}

// NewPrometheusMetrics creates a new Prometheus-based health metrics recorder.
// Uses singleton pattern to avoid duplicate metric registration in tests.
func NewPrometheusMetrics() *PrometheusMetrics {
	prometheusMetricsOnce.Do(func() {
		prometheusMetricsInstance = &PrometheusMetrics{
			attemptsTotal: getOrCreateCounterVec(prometheus.CounterOpts{
				Name: "local_llm_attempts_total",
				Help: "Total number of local endpoint attempt outcomes recorded",
			}, []string{"outcome"}),
			skipsTotal: getOrCreateCounter(prometheus.CounterOpts{
				Name: "local_llm_skips_total",
				Help: "Total number of requests short-circuited because the endpoint is unhealthy",
			}),
			failureRateGauge: getOrCreateGauge(prometheus.GaugeOpts{
				Name: "local_llm_failure_rate",
				Help: "Rolling-window failure ratio of the local endpoint (0.0-1.0)",
			}),
			windowSizeGauge: getOrCreateGauge(prometheus.GaugeOpts{
				Name: "local_llm_health_window_size",
				Help: "Number of attempt records currently in the health window",
			}),
		}
	})
	return prometheusMetricsInstance
}

// RecordAttempt implements MetricsRecorder.RecordAttempt
func (p *PrometheusMetrics) RecordAttempt(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	p.attemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordSkip implements MetricsRecorder.RecordSkip
func (p *PrometheusMetrics) RecordSkip() {
	p.skipsTotal.Inc()
}

// SetFailureRate implements MetricsRecorder.SetFailureRate
func (p *PrometheusMetrics) SetFailureRate(rate float64) {
	p.failureRateGauge.Set(rate)
}

// SetWindowSize implements MetricsRecorder.SetWindowSize
func (p *PrometheusMetrics) SetWindowSize(n int) {
	p.windowSizeGauge.Set(float64(n))
}
