package redact

import (
	"regexp"
	"strings"
)

var (
	// Matches "Token <token>" and "Bearer <token>" authorization values.
	authHeaderRe = regexp.MustCompile(`(?i)\b(Token|Bearer|JWT)\s+[^\s"']+`)

	// Common key=value formats that sometimes leak in error strings.
	apiTokenKVRe = regexp.MustCompile(`(?i)\b(api[_-]?token|api[_-]?key|baserow[_-]?api[_-]?token)\b\s*[:=]\s*[^\s"']+`)
)

// Secrets removes obvious secret-bearing substrings from error/log strings.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = authHeaderRe.ReplaceAllString(out, "$1 <redacted>")
	out = apiTokenKVRe.ReplaceAllString(out, "<redacted_kv>")
	return strings.TrimSpace(out)
}
