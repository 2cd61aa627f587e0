package mcpauth

import "strings"

// Substrings that mark a failure as an authentication problem rather
// than a genuine tool error. Matched case-insensitively.
var authErrorMarkers = []string{
	"401",
	"403",
	"unauthorized",
	"forbidden",
	"authentication required",
	"access denied",
	"invalid token",
	"token expired",
}

// IsAuthError reports whether an error message looks like an upstream
// authentication failure. Auth-shaped failures are surfaced as
// authorization prompts instead of error chunks.
func IsAuthError(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range authErrorMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
