package core

import "strings"

// CleanString normalizes user-submitted text: surrounding whitespace is
// stripped, and with lower set the result is lowercased (emails).
func CleanString(s string, lower ...bool) string {
	cleaned := strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		cleaned = strings.ToLower(cleaned)
	}
	return cleaned
}
