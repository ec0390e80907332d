// Package strings holds list helpers for configuration values.
package strings

import "strings"

// SplitList splits a comma separated value into trimmed, unique, non-empty
// items in their original order. An empty input yields nil.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return unique(strings.Split(raw, ","), strings.TrimSpace)
}

// Lowered trims and lowercases each item, dropping blanks and repeats.
// Used for case-insensitive sets such as form field names and mail domains.
func Lowered(values []string) []string {
	return unique(values, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}

func unique(values []string, clean func(string) string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = clean(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
