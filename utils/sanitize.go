package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizer = bluemonday.UGCPolicy()
	stripper  = bluemonday.StrictPolicy()
)

// Sanitize cleans HTML content to prevent XSS attacks.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// SanitizePlain strips all markup and surrounding whitespace. Used for titles, nicknames and reasons.
func SanitizePlain(input string) string {
	return strings.TrimSpace(stripper.Sanitize(input))
}

// SearchTerm escapes a search string the way stored titles and content are escaped,
// so a literal term lines up with the saved text.
func SearchTerm(input string) string {
	return stripper.Sanitize(input)
}
