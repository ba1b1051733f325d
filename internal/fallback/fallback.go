// Package fallback provides remote chat providers used when the local
// inference endpoint is unavailable. It includes adapters for Claude
// (Anthropic) and OpenAI APIs with reliability patterns: circuit breaker,
// retry with backoff, and client-side rate limiting.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ErrDisabled is returned when no fallback provider is configured and the
// local endpoint could not serve the request.
var ErrDisabled = errors.New("fallback provider disabled")

// ChatService produces a chat completion for a prompt. Implementations wrap
// a remote provider and are safe for concurrent use.
type ChatService interface {
	// Chat returns the provider's response to the prompt, or an error when
	// the provider could not answer.
	Chat(ctx context.Context, prompt string) (string, error)

	// Provider returns a short identifier for logging and metrics.
	Provider() string
}

// NewFromEnv selects and builds the fallback provider from environment
// variables.
//
// Environment variables:
//   - FALLBACK_PROVIDER: "claude", "openai", or "none" (default: "claude"
//     when ANTHROPIC_API_KEY is set, otherwise "none")
//   - ANTHROPIC_API_KEY: required for the claude provider
//   - OPENAI_API_KEY: required for the openai provider
func NewFromEnv() (ChatService, error) {
	provider := strings.ToLower(os.Getenv("FALLBACK_PROVIDER"))
	if provider == "" {
		if os.Getenv("ANTHROPIC_API_KEY") != "" {
			provider = "claude"
		} else {
			provider = "none"
		}
	}

	switch provider {
	case "claude":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("FALLBACK_PROVIDER=claude requires ANTHROPIC_API_KEY")
		}
		return NewClaude(apiKey), nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("FALLBACK_PROVIDER=openai requires OPENAI_API_KEY")
		}
		cfg, err := LoadOpenAIConfig()
		if err != nil {
			return nil, err
		}
		return NewOpenAI(apiKey, cfg), nil

	case "none":
		slog.Info("fallback provider disabled")
		return NewDisabled(), nil

	default:
		return nil, fmt.Errorf("unknown FALLBACK_PROVIDER: %q", provider)
	}
}
