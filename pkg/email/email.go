// Package email holds address helpers shared by registration and email
// verification.
package email

import (
	"strings"
	"unicode"
)

const fallbackName = "User"

// DeriveNameFromEmail guesses a display name from the local part of an
// address. A "+tag" suffix is ignored and purely numeric segments are
// skipped, so "sara.ahmadi+shop@x.com" and "sara.ahmadi.1990@x.com" both
// give ("Sara", "Ahmadi"). Missing parts fall back to "User".
func DeriveNameFromEmail(address string) (first, last string) {
	local, _, _ := strings.Cut(strings.TrimSpace(address), "@")
	local, _, _ = strings.Cut(local, "+")

	var names []string
	for _, part := range strings.FieldsFunc(local, isNameSeparator) {
		if strings.IndexFunc(part, unicode.IsLetter) < 0 {
			continue
		}
		names = append(names, titleCase(part))
	}

	switch len(names) {
	case 0:
		return fallbackName, fallbackName
	case 1:
		return names[0], fallbackName
	default:
		return names[0], names[len(names)-1]
	}
}

func isNameSeparator(r rune) bool {
	return r == '.' || r == '_' || r == '-'
}

func titleCase(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
