package util

import (
	"html"
	"strings"
)

const maxIdeaTextLength = 4000

// SanitizeIdeaText trims, bounds, and HTML-escapes user-supplied idea text
// before it is forwarded to any provider or persisted.
func SanitizeIdeaText(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxIdeaTextLength {
		s = s[:maxIdeaTextLength]
	}
	return html.EscapeString(s)
}

// ContainsSuspicious flags script-like input that should never reach a
// provider prompt verbatim.
func ContainsSuspicious(s string) bool {
	lower := strings.ToLower(s)
	badTokens := []string{"<script", "onerror=", "onload=", "javascript:", "${", "`"}
	for _, t := range badTokens {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
