package validate

import (
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// SanitizeText strips HTML tags and trims whitespace. Common entities are
// decoded first so "&lt;script&gt;" cannot smuggle a tag past the stripper.
func SanitizeText(input string) string {
	s := tagPattern.ReplaceAllString(input, "")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = tagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// SanitizeField sanitizes and truncates to maxLen runes. Returns nil when
// nothing is left, matching nullable text columns.
func SanitizeField(input string, maxLen int) *string {
	s := SanitizeText(input)
	if s == "" {
		return nil
	}
	runes := []rune(s)
	if len(runes) > maxLen {
		s = string(runes[:maxLen])
	}
	return &s
}
