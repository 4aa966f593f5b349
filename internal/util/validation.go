package util

import (
	"regexp"
	"strings"
)

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func IsValidUUID(s string) bool {
	if s == "" {
		return false
	}
	return uuidRegex.MatchString(strings.ToLower(s))
}

// NormalizeShortCode maps user input to the canonical code form: trimmed and
// upper-cased. Humans type these off another screen, so be forgiving.
func NormalizeShortCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func IsValidShortCode(s string) bool {
	if len(s) != ShortCodeLength {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune(ShortCodeAlphabet, c) {
			return false
		}
	}
	return true
}
