package utils

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var htmlTags = regexp.MustCompile(`<.*?>|&([a-z0-9]+|#[0-9]{1,6}|#x[0-9a-f]{1,6});`)

// Capitalize upper-cases the first letter and lower-cases the rest.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// CleanHTML strips tags and entities.
func CleanHTML(raw string) string {
	return htmlTags.ReplaceAllString(raw, "")
}

// SubString returns at most length runes of s starting at rune start.
func SubString(s string, start, length int) string {
	runes := []rune(s)
	if start >= len(runes) || length <= 0 {
		return ""
	}
	end := start + length
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[start:end])
}
