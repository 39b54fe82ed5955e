// Package validate trims and bounds incoming request fields.
package validate

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	Categories = []string{"env", "frontend", "backend", "db", "git", "other", "chat"}
	Statuses   = []string{"open", "solved"}
	Roles      = []string{"admin", "user"}
)

// String accepts a non-empty string of at most max runes after trimming and
// NFC normalization.
func String(v any, max int) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = norm.NFC.String(strings.TrimSpace(s))
	if s == "" || utf8.RuneCountInString(s) > max {
		return "", false
	}
	return s, true
}

// OptionalString treats nil and "" as absent. Any value that fails String's
// rules is also reported as absent, never as an error.
func OptionalString(v any, max int) (string, bool) {
	if v == nil {
		return "", false
	}
	if s, ok := v.(string); ok && s == "" {
		return "", false
	}
	return String(v, max)
}

// Query is OptionalString for URL query values.
func Query(raw string, max int) (string, bool) {
	return OptionalString(raw, max)
}

// ClampInt parses raw and clamps it to [min, max]. Empty or unparsable input
// yields fallback.
func ClampInt(raw string, min, max, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return fallback
	}
	switch {
	case n < float64(min):
		return min
	case n > float64(max):
		return max
	default:
		return int(n)
	}
}

func OneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func IsCategory(v string) bool { return OneOf(v, Categories) }
func IsStatus(v string) bool   { return OneOf(v, Statuses) }
func IsRole(v string) bool     { return OneOf(v, Roles) }
