package encryption

import "strings"

// Redact masks all but the last showLast characters of value with '*'.
// Values no longer than showLast are fully masked. Length is counted in
// runes, so multi-byte characters mask as one asterisk each.
func Redact(value string, showLast int) string {
	if showLast < 0 {
		showLast = 0
	}

	r := []rune(value)
	if len(r) <= showLast {
		return strings.Repeat("*", len(r))
	}

	hidden := len(r) - showLast
	return strings.Repeat("*", hidden) + string(r[hidden:])
}
