package analyzer

import (
	"regexp"
	"strings"
)

var (
	urlPattern        = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s]+`)
	emailPattern      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	disallowedPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:'"()\-]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Preprocess normalizes raw text before statistics and prompting.
// URLs and email addresses are dropped, symbols outside the allowed
// punctuation set are stripped and whitespace runs collapse to one space.
func Preprocess(text string) string {
	if text == "" {
		return ""
	}

	text = urlPattern.ReplaceAllString(text, " ")
	text = emailPattern.ReplaceAllString(text, " ")
	text = disallowedPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// SplitLines returns the non-blank lines of a batch input, trimmed, in order
func SplitLines(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			result = append(result, line)
		}
	}
	return result
}
