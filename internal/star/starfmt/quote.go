// Package starfmt holds the value quoting rules of the NMR-STAR text format.
package starfmt

import (
	"strings"
	"unicode"
)

// Null is how a missing value is written.
const Null = "."

var reservedPrefixes = []string{"data_", "save_", "loop_", "stop_"}

// CleanValue renders a value so that a STAR parser reads it back unchanged.
// A returned value containing a newline must be written as a ";" block; it
// always ends in a newline.
func CleanValue(value *string) string {
	if value == nil {
		return Null
	}
	v := *value
	if v == "" {
		return "''"
	}
	if strings.Contains(v, "\n") {
		if !strings.HasSuffix(v, "\n") {
			v += "\n"
		}
		return v
	}
	hasSingle := strings.Contains(v, "'")
	hasDouble := strings.Contains(v, `"`)
	if hasSingle && hasDouble {
		return v + "\n"
	}
	if needsQuotes(v) {
		if hasSingle {
			return `"` + v + `"`
		}
		return "'" + v + "'"
	}
	switch v[0] {
	case '\'':
		return `"` + v + `"`
	case '"':
		return "'" + v + "'"
	}
	return v
}

// Multiline reports whether a cleaned value must be written as a ";" block.
func Multiline(cleaned string) bool {
	return strings.Contains(cleaned, "\n")
}

func needsQuotes(v string) bool {
	if strings.ContainsFunc(v, unicode.IsSpace) || strings.Contains(v, "#") {
		return true
	}
	if strings.HasPrefix(v, "_") {
		return true
	}
	if len(v) > 4 {
		lower := strings.ToLower(v)
		for _, p := range reservedPrefixes {
			if strings.HasPrefix(lower, p) {
				return true
			}
		}
	}
	return false
}
