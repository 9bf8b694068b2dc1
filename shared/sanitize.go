package shared

import (
	"html"
	"regexp"
	"strings"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// SanitizeText strips HTML tags, escapes what remains and collapses
// surrounding whitespace. Length limits are enforced on the sanitized
// output, not the raw input.
func SanitizeText(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = html.EscapeString(s)
	return strings.TrimSpace(s)
}
