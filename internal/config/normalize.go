package config

import (
	"regexp"
	"strings"
)

const DefaultOwnerID = "default"

var (
	validOwnerRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
	invalidChars = regexp.MustCompile(`[^a-z0-9_-]+`)
	leadingDash  = regexp.MustCompile(`^-+`)
	trailingDash = regexp.MustCompile(`-+$`)
)

// NormalizeOwnerID converts a user-provided name into a valid owner ID:
//   - Lowercase, max 64 chars
//   - Only [a-z0-9_-] allowed
//   - Invalid chars replaced with "-"
//   - Leading/trailing dashes stripped
//   - Empty result defaults to "default"
func NormalizeOwnerID(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return DefaultOwnerID
	}

	lower := strings.ToLower(trimmed)
	if validOwnerRe.MatchString(lower) {
		return lower
	}

	// Best-effort: collapse invalid chars to "-"
	result := invalidChars.ReplaceAllString(lower, "-")
	result = leadingDash.ReplaceAllString(result, "")
	result = trailingDash.ReplaceAllString(result, "")

	if len(result) > 64 {
		result = result[:64]
	}

	if result == "" {
		return DefaultOwnerID
	}
	return result
}
