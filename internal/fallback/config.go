package fallback

import "fmt"

// ProviderConfig is a common interface for fallback provider configuration.
// Both OpenAI and Claude implementations should implement this interface
// to ensure consistent validation and configuration behavior.
type ProviderConfig interface {
	// GetPromptCharLimit returns the maximum number of characters of prompt
	// sent to the provider. Longer prompts are truncated.
	GetPromptCharLimit() int

	// Validate validates the configuration and returns an error if invalid.
	Validate() error
}

const (
	// minPromptCharLimit is the minimum allowed prompt truncation limit.
	minPromptCharLimit = 1000

	// maxPromptCharLimit is the maximum allowed prompt truncation limit.
	maxPromptCharLimit = 100000
)

// ValidatePromptCharLimit validates that the prompt character limit is
// within the valid range (1000-100000).
func ValidatePromptCharLimit(limit int) error {
	if limit < minPromptCharLimit {
		return fmt.Errorf("prompt char limit %d is below minimum %d", limit, minPromptCharLimit)
	}
	if limit > maxPromptCharLimit {
		return fmt.Errorf("prompt char limit %d exceeds maximum %d", limit, maxPromptCharLimit)
	}
	return nil
}

// truncatePrompt caps the prompt at limit characters, marking the cut.
func truncatePrompt(prompt string, limit int) string {
	if len(prompt) <= limit {
		return prompt
	}
	return prompt[:limit] + "...\n(prompt truncated)"
}
