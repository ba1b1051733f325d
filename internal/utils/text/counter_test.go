package text_test

import (
	"testing"

	"llmbridge/internal/utils/text"
)

func TestCountRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{
			name:     "ASCII text",
			input:    "hello",
			expected: 5,
		},
		{
			name:     "ASCII with spaces",
			input:    "hello world",
			expected: 11,
		},
		{
			name:     "Japanese text",
			input:    "こんにちは",
			expected: 5,
		},
		{
			name:     "mixed English and Japanese",
			input:    "hello世界",
			expected: 7,
		},
		{
			name:     "emoji",
			input:    "Hello👋",
			expected: 6,
		},
		{
			name:     "empty string",
			input:    "",
			expected: 0,
		},
		{
			name:     "newlines and tabs",
			input:    "a\nb\tc",
			expected: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := text.CountRunes(tt.input)
			if got != tt.expected {
				t.Errorf("CountRunes(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCountRunes_ByteLengthDiffers(t *testing.T) {
	input := "日本語"
	if len(input) == text.CountRunes(input) {
		t.Error("expected byte length and rune count to differ for multi-byte text")
	}
	if got := text.CountRunes(input); got != 3 {
		t.Errorf("CountRunes(%q) = %d, want 3", input, got)
	}
}
