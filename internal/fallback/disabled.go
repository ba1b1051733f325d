package fallback

import (
	"context"
)

// Disabled is a ChatService used when no fallback provider is configured.
// Every call returns ErrDisabled so the caller can surface the local
// endpoint's failure instead of a provider response.
type Disabled struct{}

// NewDisabled creates a new Disabled provider.
func NewDisabled() *Disabled {
	return &Disabled{}
}

// Provider implements ChatService.
func (Disabled) Provider() string {
	return "none"
}

// Chat implements ChatService. It always returns ErrDisabled.
func (Disabled) Chat(_ context.Context, _ string) (string, error) {
	return "", ErrDisabled
}
