package text_test

import (
	"testing"
	"unicode/utf8"

	"callguard/internal/utils/text"
)

func TestCountRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{name: "ASCII text", input: "hello", expected: 5},
		{name: "Japanese text", input: "こんにちは", expected: 5},
		{name: "mixed text", input: "hello世界", expected: 7},
		{name: "emoji", input: "Hello👋", expected: 6},
		{name: "empty string", input: "", expected: 0},
		{name: "whitespace only", input: " \t\n ", expected: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := text.CountRunes(tt.input); got != tt.expected {
				t.Errorf("CountRunes(%q) = %d, expected %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{name: "under limit unchanged", input: "hello", limit: 10, expected: "hello"},
		{name: "exactly at limit unchanged", input: "hello", limit: 5, expected: "hello"},
		{name: "over limit cut", input: "hello world", limit: 5, expected: "hello"},
		{name: "zero limit disables truncation", input: "hello", limit: 0, expected: "hello"},
		{name: "negative limit disables truncation", input: "hello", limit: -1, expected: "hello"},
		{name: "multi-byte cut on rune boundary", input: "日本語のテスト", limit: 3, expected: "日本語"},
		{name: "mixed text cut", input: "go言語", limit: 3, expected: "go言"},
		{name: "empty string", input: "", limit: 5, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := text.TruncateRunes(tt.input, tt.limit)
			if got != tt.expected {
				t.Errorf("TruncateRunes(%q, %d) = %q, expected %q", tt.input, tt.limit, got, tt.expected)
			}
			if !utf8.ValidString(got) {
				t.Errorf("TruncateRunes(%q, %d) produced invalid UTF-8", tt.input, tt.limit)
			}
		})
	}
}

func TestTruncateRunes_NeverExceedsLimit(t *testing.T) {
	inputs := []string{
		"Lorem ipsum dolor sit amet, consectetur adipiscing elit.",
		"人工知能技術の発展により、私たちの生活は大きく変化しています。",
		"Machine LearningとDeep Learningの違い",
	}

	for _, input := range inputs {
		for limit := 1; limit <= 10; limit++ {
			got := text.TruncateRunes(input, limit)
			if count := text.CountRunes(got); count > limit {
				t.Errorf("TruncateRunes(%q, %d) kept %d runes", input, limit, count)
			}
		}
	}
}
