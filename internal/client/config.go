package client

import (
	"fmt"
	"time"

	"llmbridge/internal/health"
	"llmbridge/pkg/config"
)

// Config holds configuration for the resilient client and its transports.
// Configuration is loaded from environment variables with fallback to
// defaults.
type Config struct {
	// BaseURL is the local endpoint base URL for the HTTP transport.
	BaseURL string

	// SocketPath is the Unix socket path for the fast local transport.
	// Empty means the transport is structurally unavailable.
	SocketPath string

	// Model is the default model identifier sent with requests that do
	// not specify one.
	Model string

	// ConnectTimeout bounds connection establishment for the HTTP
	// transport. Must be smaller than the per-attempt timeout so a dead
	// endpoint is detected quickly.
	ConnectTimeout time.Duration

	// BackoffBase is the delay after the first failed attempt.
	BackoffBase time.Duration

	// BackoffCap bounds the inter-attempt delay.
	BackoffCap time.Duration

	// Health configures the endpoint health monitor.
	Health health.Config
}

// LoadConfig loads client configuration from environment variables.
//
// Environment variables:
//   - LOCAL_LLM_BASE_URL: Endpoint base URL (default: http://localhost:11434)
//   - LOCAL_LLM_SOCKET_PATH: Unix socket path (default: unset)
//   - LOCAL_LLM_MODEL: Default model identifier (default: gemma3:latest)
//   - LOCAL_LLM_CONNECT_TIMEOUT: Connect timeout (default: 2s)
//   - LOCAL_LLM_BACKOFF_BASE: Backoff base delay (default: 1s)
//   - LOCAL_LLM_BACKOFF_CAP: Backoff delay cap (default: 10s)
//   - LOCAL_LLM_BASE_TIMEOUT: Per-attempt timeout under full health (default: 30s)
//   - LOCAL_LLM_MIN_TIMEOUT: Recommended timeout floor (default: 5s)
//   - LOCAL_LLM_MAX_TIMEOUT: Recommended timeout ceiling (default: 60s)
//   - LOCAL_LLM_MAX_RETRIES: Retry budget under full health (default: 3)
//   - HEALTH_WINDOW_CAPACITY: Rolling window capacity (default: 20)
//   - HEALTH_MIN_SAMPLES: Minimum samples before skipping (default: 3)
//   - HEALTH_SKIP_THRESHOLD: Failure ratio that triggers skipping (default: 0.7)
//   - HEALTH_DEGRADED_THRESHOLD: Failure ratio that marks degradation (default: 0.3)
func LoadConfig() Config {
	healthDefaults := health.DefaultConfig()

	return Config{
		BaseURL:        config.GetEnvString("LOCAL_LLM_BASE_URL", "http://localhost:11434"),
		SocketPath:     config.GetEnvString("LOCAL_LLM_SOCKET_PATH", ""),
		Model:          config.GetEnvString("LOCAL_LLM_MODEL", "gemma3:latest"),
		ConnectTimeout: config.GetEnvDuration("LOCAL_LLM_CONNECT_TIMEOUT", 2*time.Second),
		BackoffBase:    config.GetEnvDuration("LOCAL_LLM_BACKOFF_BASE", DefaultBackoffBase),
		BackoffCap:     config.GetEnvDuration("LOCAL_LLM_BACKOFF_CAP", DefaultBackoffCap),
		Health: health.Config{
			WindowCapacity:    config.GetEnvInt("HEALTH_WINDOW_CAPACITY", healthDefaults.WindowCapacity),
			MinSamples:        config.GetEnvInt("HEALTH_MIN_SAMPLES", healthDefaults.MinSamples),
			SkipThreshold:     config.GetEnvFloat("HEALTH_SKIP_THRESHOLD", healthDefaults.SkipThreshold),
			DegradedThreshold: config.GetEnvFloat("HEALTH_DEGRADED_THRESHOLD", healthDefaults.DegradedThreshold),
			BaseTimeout:       config.GetEnvDuration("LOCAL_LLM_BASE_TIMEOUT", healthDefaults.BaseTimeout),
			MinTimeout:        config.GetEnvDuration("LOCAL_LLM_MIN_TIMEOUT", healthDefaults.MinTimeout),
			MaxTimeout:        config.GetEnvDuration("LOCAL_LLM_MAX_TIMEOUT", healthDefaults.MaxTimeout),
			MaxRetries:        config.GetEnvInt("LOCAL_LLM_MAX_RETRIES", healthDefaults.MaxRetries),
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if err := config.ValidatePositiveDuration(c.ConnectTimeout); err != nil {
		return fmt.Errorf("invalid connect timeout: %w", err)
	}
	if c.ConnectTimeout >= c.Health.BaseTimeout {
		return fmt.Errorf("connect timeout (%v) must be smaller than the base timeout (%v)",
			c.ConnectTimeout, c.Health.BaseTimeout)
	}
	if err := config.ValidatePositiveDuration(c.BackoffBase); err != nil {
		return fmt.Errorf("invalid backoff base: %w", err)
	}
	if c.BackoffCap < c.BackoffBase {
		return fmt.Errorf("backoff cap (%v) must be at least the backoff base (%v)",
			c.BackoffCap, c.BackoffBase)
	}
	if err := c.Health.Validate(); err != nil {
		return fmt.Errorf("invalid health config: %w", err)
	}
	return nil
}
