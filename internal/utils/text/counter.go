// Package text provides rune-aware text helpers shared by prompt
// construction and output reporting. Counting runes instead of bytes
// keeps budgets and logged lengths stable for multi-byte content.
package text

import "unicode/utf8"

// CountRunes counts the Unicode characters in the given text.
//
// Examples:
//
//	CountRunes("hello")     // returns 5 (ASCII text)
//	CountRunes("こんにちは")  // returns 5 (Japanese text)
//	CountRunes("")          // returns 0 (empty string)
func CountRunes(text string) int {
	return utf8.RuneCountInString(text)
}

// TruncateRunes cuts the text to at most limit runes. A non-positive
// limit disables truncation. Cutting on rune boundaries keeps the
// result valid UTF-8 even when the limit lands inside a multi-byte
// character.
func TruncateRunes(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}
