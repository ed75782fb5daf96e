package utils

import (
	"strings"
	"unicode/utf8"
)

// MaxPromptChars is the longest prompt, in characters, accepted or forwarded.
const MaxPromptChars = 10000

var promptStripper = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "")

// SanitizePrompt removes markup and quote characters, caps the prompt at
// MaxPromptChars characters and trims surrounding whitespace.
func SanitizePrompt(prompt string) string {
	sanitized := promptStripper.Replace(prompt)

	if utf8.RuneCountInString(sanitized) > MaxPromptChars {
		sanitized = string([]rune(sanitized)[:MaxPromptChars])
	}

	return strings.TrimSpace(sanitized)
}

// EstimateTokens is the usual rough estimate of one token per four characters.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}
