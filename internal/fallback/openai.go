package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"llmbridge/internal/resilience/circuitbreaker"
	"llmbridge/internal/resilience/retry"
	"llmbridge/internal/utils/text"
	"llmbridge/pkg/config"
)

// OpenAIConfig holds configuration parameters for the OpenAI fallback
// provider. Configuration is loaded from environment variables with fallback
// to defaults.
type OpenAIConfig struct {
	// PromptCharLimit is the maximum prompt length sent to the API.
	// Loaded from FALLBACK_PROMPT_CHAR_LIMIT. Default: 10000.
	PromptCharLimit int

	// Model is the OpenAI API model identifier.
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
func (c *OpenAIConfig) GetPromptCharLimit() int {
	return c.PromptCharLimit
}

// Validate implements ProviderConfig.
func (c *OpenAIConfig) Validate() error {
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

// LoadOpenAIConfig loads configuration from environment variables.
// Unlike the Claude loader it fails closed: an invalid value is an error,
// not a silent default.
//
// Environment variables:
//   - FALLBACK_PROMPT_CHAR_LIMIT: Prompt truncation limit (default: 10000)
//   - OPENAI_FALLBACK_MODEL: Model identifier (default: gpt-4o-mini)
//   - FALLBACK_MAX_TOKENS: Response token budget (default: 1024)
//   - FALLBACK_TIMEOUT: Per-call timeout (default: 60s)
func LoadOpenAIConfig() (*OpenAIConfig, error) {
	charLimit := 10000

	if envLimit := os.Getenv("FALLBACK_PROMPT_CHAR_LIMIT"); envLimit != "" {
		parsed, err := strconv.Atoi(envLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid FALLBACK_PROMPT_CHAR_LIMIT format: %s: %w", envLimit, err)
		}

		if err := ValidatePromptCharLimit(parsed); err != nil {
			return nil, fmt.Errorf("FALLBACK_PROMPT_CHAR_LIMIT out of valid range: %w", err)
		}

		charLimit = parsed
	}

	cfg := &OpenAIConfig{
		PromptCharLimit:   charLimit,
		Model:             config.GetEnvString("OPENAI_FALLBACK_MODEL", "gpt-4o-mini"),
		MaxTokens:         config.GetEnvInt("FALLBACK_MAX_TOKENS", 1024),
		Timeout:           config.GetEnvDuration("FALLBACK_TIMEOUT", 60*time.Second),
		RequestsPerSecond: config.GetEnvFloat("FALLBACK_RATE_LIMIT", 2.0),
		Burst:             config.GetEnvInt("FALLBACK_RATE_BURST", 5),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid OpenAI configuration: %w", err)
	}

	return cfg, nil
}

// OpenAI implements the ChatService interface using OpenAI's chat API.
// It includes circuit breaker, retry logic and client-side rate limiting for
// improved reliability.
type OpenAI struct {
	client          *openai.Client
	circuitBreaker  *circuitbreaker.CircuitBreaker
	retryConfig     retry.Config
	config          *OpenAIConfig
	limiter         *RateLimiter
	metricsRecorder ChatMetricsRecorder
}

// NewOpenAI creates a new OpenAI fallback provider with the given API key.
func NewOpenAI(apiKey string, cfg *OpenAIConfig) *OpenAI {
	slog.Info("Initialized OpenAI fallback provider",
		slog.String("model", cfg.Model),
		slog.Int("prompt_char_limit", cfg.PromptCharLimit))

	return &OpenAI{
		client:          openai.NewClient(apiKey),
		circuitBreaker:  circuitbreaker.New(circuitbreaker.OpenAIFallbackConfig()),
		retryConfig:     retry.FallbackAPIConfig(),
		config:          cfg,
		limiter:         NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		metricsRecorder: NewPrometheusChatMetrics(),
	}
}

// Provider implements ChatService.
func (o *OpenAI) Provider() string {
	return "openai"
}

// Chat generates a response to the prompt using OpenAI's chat API.
// It uses circuit breaker and retry logic for improved reliability.
func (o *OpenAI) Chat(ctx context.Context, prompt string) (string, error) {
	if err := o.limiter.Allow(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait aborted: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	var result string

	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		cbResult, err := o.circuitBreaker.Execute(func() (interface{}, error) {
			return o.doChat(ctx, prompt)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("openai fallback circuit breaker open, request rejected",
					slog.String("service", "openai-fallback"),
					slog.String("state", o.circuitBreaker.State().String()))
				return fmt.Errorf("openai fallback unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		o.metricsRecorder.RecordRequest(o.Provider(), false)
		return "", fmt.Errorf("openai chat failed after retries: %w", retryErr)
	}

	o.metricsRecorder.RecordRequest(o.Provider(), true)
	return result, nil
}

// doChat performs the actual API call without retry or circuit breaker.
func (o *OpenAI) doChat(ctx context.Context, prompt string) (string, error) {
	truncated := truncatePrompt(prompt, o.config.PromptCharLimit)
	if len(truncated) != len(prompt) {
		slog.Warn("prompt truncated for openai api",
			slog.Int("original_length", len(prompt)),
			slog.Int("truncated_length", len(truncated)))
	}

	slog.InfoContext(ctx, "Starting fallback chat",
		slog.String("provider", o.Provider()),
		slog.Int("prompt_length", text.CountRunes(truncated)))

	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.config.Model,
		MaxTokens: o.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: truncated,
		}},
	})

	duration := time.Since(start)
	o.metricsRecorder.RecordDuration(o.Provider(), duration)

	if err != nil {
		slog.ErrorContext(ctx, "Fallback chat failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("openai api error: %w", err)
	}

	// Safety check to prevent panic on array access
	if len(resp.Choices) == 0 {
		slog.ErrorContext(ctx, "OpenAI API returned empty response",
			slog.Duration("duration", duration))
		return "", fmt.Errorf("openai api returned empty response")
	}

	response := resp.Choices[0].Message.Content
	responseLength := text.CountRunes(response)
	o.metricsRecorder.RecordResponseLength(o.Provider(), responseLength)

	slog.InfoContext(ctx, "Fallback chat completed",
		slog.Int("response_length", responseLength),
		slog.Duration("duration", duration))

	return response, nil
}
