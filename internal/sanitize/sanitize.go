// Package sanitize neutralizes spreadsheet formula injection in values that
// are exported to CSV or Excel files.
package sanitize

import (
	"strings"
	"unicode"
)

// A cell whose first non-space character is one of these is evaluated as a
// formula by Excel and LibreOffice.
const formulaTriggers = "=+-@"

func isTrigger(s string) bool {
	t := strings.TrimLeftFunc(s, unicode.IsSpace)
	return t != "" && strings.ContainsRune(formulaTriggers, rune(t[0]))
}

// ForSpreadsheet prefixes s with an apostrophe when it would otherwise be
// interpreted as a formula.
func ForSpreadsheet(s string) string {
	if isTrigger(s) {
		return "'" + s
	}
	return s
}

// IsSafe reports whether s can be written to a cell unchanged.
func IsSafe(s string) bool {
	return !isTrigger(s)
}

// Row sanitizes every cell of a record.
func Row(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = ForSpreadsheet(c)
	}
	return out
}

// Map returns a copy of m with string values sanitized. Nested maps and
// slices are walked; other values are copied as is.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = value(v)
	}
	return out
}

func value(v any) any {
	switch t := v.(type) {
	case string:
		return ForSpreadsheet(t)
	case []string:
		return Row(t)
	case map[string]any:
		return Map(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = value(e)
		}
		return out
	default:
		return v
	}
}

// RemoveControlChars drops ASCII control characters other than tab, line
// feed and carriage return.
func RemoveControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
