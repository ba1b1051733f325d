package fallback

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ChatMetricsRecorder defines the interface for recording fallback chat
// metrics. This interface abstracts the metrics recording implementation,
// enabling:
//   - Mocking in unit tests (inject mock recorder instead of Prometheus)
//   - Swapping metrics systems (DataDog, New Relic, OpenTelemetry, etc.)
//   - Reusability across different AI providers (Claude, OpenAI, Gemini)
type ChatMetricsRecorder interface {
	// RecordRequest counts a fallback request outcome per provider.
	RecordRequest(provider string, success bool)

	// RecordDuration records the wall-clock duration of a provider call.
	RecordDuration(provider string, d time.Duration)

	// RecordResponseLength records the length of a provider response in runes.
	RecordResponseLength(provider string, length int)
}

// NoopChatMetrics is a ChatMetricsRecorder that discards all observations.
type NoopChatMetrics struct{}

func (NoopChatMetrics) RecordRequest(string, bool) {}

func (NoopChatMetrics) RecordDuration(string, time.Duration) {}

func (NoopChatMetrics) RecordResponseLength(string, int) {}

// PrometheusChatMetrics implements ChatMetricsRecorder using Prometheus.
// This is the production implementation.
type PrometheusChatMetrics struct {
	requestsTotal  *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	responseLength *prometheus.HistogramVec
}

var (
	chatMetricsInstance *PrometheusChatMetrics
	chatMetricsOnce     sync.Once
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

// getOrCreateHistogramVec gets an existing histogram vec or creates a new one if it doesn't exist.
func getOrCreateHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	if err := prometheus.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.HistogramVec)
		}
		return promauto.NewHistogramVec(opts, labels)
	}
	return h
}

// NewPrometheusChatMetrics creates a new Prometheus-based fallback metrics recorder.
// Uses singleton pattern to avoid duplicate metric registration in tests.
func NewPrometheusChatMetrics() *PrometheusChatMetrics {
	chatMetricsOnce.Do(func() {
		chatMetricsInstance = &PrometheusChatMetrics{
			requestsTotal: getOrCreateCounterVec(prometheus.CounterOpts{
				Name: "fallback_requests_total",
				Help: "Total number of fallback provider requests by outcome",
			}, []string{"provider", "outcome"}),
			duration: getOrCreateHistogramVec(prometheus.HistogramOpts{
				Name:    "fallback_request_duration_seconds",
				Help:    "Duration of fallback provider calls in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"provider"}),
			responseLength: getOrCreateHistogramVec(prometheus.HistogramOpts{
				Name:    "fallback_response_length_chars",
				Help:    "Length of fallback provider responses in characters",
				Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
			}, []string{"provider"}),
		}
	})
	return chatMetricsInstance
}

// RecordRequest implements ChatMetricsRecorder.RecordRequest
func (p *PrometheusChatMetrics) RecordRequest(provider string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	p.requestsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordDuration implements ChatMetricsRecorder.RecordDuration
func (p *PrometheusChatMetrics) RecordDuration(provider string, d time.Duration) {
	p.duration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordResponseLength implements ChatMetricsRecorder.RecordResponseLength
func (p *PrometheusChatMetrics) RecordResponseLength(provider string, length int) {
	p.responseLength.WithLabelValues(provider).Observe(float64(length))
}
