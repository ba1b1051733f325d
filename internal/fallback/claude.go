package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"llmbridge/internal/resilience/circuitbreaker"
	"llmbridge/internal/resilience/retry"
	"llmbridge/internal/utils/text"
	"llmbridge/pkg/config"
)

// ClaudeConfig holds configuration parameters for the Claude fallback
// provider. Configuration is loaded from environment variables with fallback
// to defaults.
type ClaudeConfig struct {
	// PromptCharLimit is the maximum prompt length sent to the API.
	// Loaded from FALLBACK_PROMPT_CHAR_LIMIT. Default: 10000.
	PromptCharLimit int

	// Model is the Claude API model identifier.
	Model string

	// MaxTokens is the maximum number of tokens for the API response.
	MaxTokens int

	// Timeout is the maximum duration for a single chat API call.
	Timeout time.Duration

	// RequestsPerSecond and Burst configure the client-side rate limiter.
	RequestsPerSecond float64
	Burst             int
}

// GetPromptCharLimit implements ProviderConfig.
func (c *ClaudeConfig) GetPromptCharLimit() int {
	return c.PromptCharLimit
}

// Validate implements ProviderConfig.
func (c *ClaudeConfig) Validate() error {
	if err := ValidatePromptCharLimit(c.PromptCharLimit); err != nil {
		return fmt.Errorf("invalid prompt char limit: %w", err)
	}
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// LoadClaudeConfig loads configuration from environment variables.
// Invalid values fall back to defaults with a warning log.
//
// Environment variables:
//   - FALLBACK_PROMPT_CHAR_LIMIT: Prompt truncation limit (default: 10000)
//   - CLAUDE_FALLBACK_MODEL: Model identifier (default: claude-sonnet-4-5)
//   - FALLBACK_MAX_TOKENS: Response token budget (default: 1024)
//   - FALLBACK_TIMEOUT: Per-call timeout (default: 60s)
//   - FALLBACK_RATE_LIMIT: Sustained requests per second (default: 2.0)
//   - FALLBACK_RATE_BURST: Burst capacity (default: 5)
func LoadClaudeConfig() ClaudeConfig {
	charLimit := config.GetEnvInt("FALLBACK_PROMPT_CHAR_LIMIT", 10000)
	if err := ValidatePromptCharLimit(charLimit); err != nil {
		slog.Warn("FALLBACK_PROMPT_CHAR_LIMIT out of valid range, using default",
			slog.Int("value", charLimit),
			slog.Int("default", 10000))
		charLimit = 10000
	}

	return ClaudeConfig{
		PromptCharLimit:   charLimit,
		Model:             config.GetEnvString("CLAUDE_FALLBACK_MODEL", string(anthropic.ModelClaudeSonnet4_5_20250929)),
		MaxTokens:         config.GetEnvInt("FALLBACK_MAX_TOKENS", 1024),
		Timeout:           config.GetEnvDuration("FALLBACK_TIMEOUT", 60*time.Second),
		RequestsPerSecond: config.GetEnvFloat("FALLBACK_RATE_LIMIT", 2.0),
		Burst:             config.GetEnvInt("FALLBACK_RATE_BURST", 5),
	}
}

// Claude implements the ChatService interface using Anthropic's Claude API.
// It includes circuit breaker, retry logic and client-side rate limiting for
// improved reliability.
type Claude struct {
	client          anthropic.Client
	circuitBreaker  *circuitbreaker.CircuitBreaker
	retryConfig     retry.Config
	config          ClaudeConfig
	limiter         *RateLimiter
	metricsRecorder ChatMetricsRecorder
}

// NewClaude creates a new Claude fallback provider with the given API key.
// It automatically configures circuit breaker, retry logic, rate limiting
// and metrics recording.
func NewClaude(apiKey string) *Claude {
	cfg := LoadClaudeConfig()

	slog.Info("Initialized Claude fallback provider",
		slog.String("model", cfg.Model),
		slog.Int("prompt_char_limit", cfg.PromptCharLimit),
		slog.Duration("timeout", cfg.Timeout))

	return &Claude{
		client:          anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker:  circuitbreaker.New(circuitbreaker.ClaudeFallbackConfig()),
		retryConfig:     retry.FallbackAPIConfig(),
		config:          cfg,
		limiter:         NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		metricsRecorder: NewPrometheusChatMetrics(),
	}
}

// Provider implements ChatService.
func (c *Claude) Provider() string {
	return "claude"
}

// Chat generates a response to the prompt using Claude.
// It uses circuit breaker and retry logic for improved reliability.
func (c *Claude) Chat(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Allow(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait aborted: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var result string

	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doChat(ctx, prompt)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("claude fallback circuit breaker open, request rejected",
					slog.String("service", "claude-fallback"),
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("claude fallback unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		c.metricsRecorder.RecordRequest(c.Provider(), false)
		return "", fmt.Errorf("claude chat failed after retries: %w", retryErr)
	}

	c.metricsRecorder.RecordRequest(c.Provider(), true)
	return result, nil
}

// doChat performs the actual API call without retry or circuit breaker.
func (c *Claude) doChat(ctx context.Context, prompt string) (string, error) {
	requestID := uuid.New().String()

	truncated := truncatePrompt(prompt, c.config.PromptCharLimit)
	if len(truncated) != len(prompt) {
		slog.Warn("prompt truncated for claude api",
			slog.String("request_id", requestID),
			slog.Int("original_length", len(prompt)),
			slog.Int("truncated_length", len(truncated)))
	}

	slog.InfoContext(ctx, "Starting fallback chat",
		slog.String("request_id", requestID),
		slog.String("provider", c.Provider()),
		slog.Int("prompt_length", text.CountRunes(truncated)))

	start := time.Now()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(truncated),
			),
		},
	})

	duration := time.Since(start)
	c.metricsRecorder.RecordDuration(c.Provider(), duration)

	if err != nil {
		slog.ErrorContext(ctx, "Fallback chat failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		slog.ErrorContext(ctx, "Claude API returned empty response",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration))
		return "", fmt.Errorf("claude api returned empty response")
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		slog.ErrorContext(ctx, "Claude API returned unexpected response type",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration))
		return "", fmt.Errorf("claude api returned unexpected response type")
	}

	response := textBlock.Text
	responseLength := text.CountRunes(response)
	c.metricsRecorder.RecordResponseLength(c.Provider(), responseLength)

	slog.InfoContext(ctx, "Fallback chat completed",
		slog.String("request_id", requestID),
		slog.Int("response_length", responseLength),
		slog.Duration("duration", duration))

	return response, nil
}
