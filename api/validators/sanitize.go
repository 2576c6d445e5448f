package validators

import "strings"

// SanitizeString trims surrounding whitespace and clamps the result to
// maxLen bytes. Free-text fields (settlement reasons, order notes) pass
// through here before they reach storage.
func SanitizeString(input string, maxLen int) string {
	out := strings.TrimSpace(input)
	if maxLen > 0 && len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}
