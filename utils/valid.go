// utils/valid.go
package utils

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRegex  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	scriptRegex = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
)

// SanitizeInput trims, strips control characters and script blocks, and
// HTML-escapes free text such as names and product titles.
func SanitizeInput(input string) string {
	input = strings.TrimSpace(input)
	input = scriptRegex.ReplaceAllString(input, "")
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
	return html.EscapeString(input)
}

// SanitizeEmail lower-cases and validates an email address.
func SanitizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(email) {
		return "", errors.New("invalid email format")
	}
	return email, nil
}
