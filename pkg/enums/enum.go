package enums

import (
	"fmt"
	"slices"
	"strings"
)

// isOneOf reports whether v is one of the declared values of its enum.
func isOneOf[T ~string](valid []T, v T) bool {
	return slices.Contains(valid, v)
}

// parseOneOf matches raw case-insensitively after trimming, so values read
// from headers, env vars and provider payloads parse the same way.
func parseOneOf[T ~string](valid []T, raw, label string) (T, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, candidate := range valid {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", label, raw)
}
