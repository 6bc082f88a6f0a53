package utils

import (
	"html"
	"strings"
)

// SanitizeInput trims s and escapes HTML markup
func SanitizeInput(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

// ContainsScript reports whether s carries a script tag opener
func ContainsScript(s string) bool {
	return strings.Contains(strings.ToLower(s), "<script")
}
