package models

import (
	"regexp"
	"strings"
)

var (
	phoneNoise  = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "\t", "")
	phoneLocal  = regexp.MustCompile(`^09\d{9}$`)
	phonePlus   = regexp.MustCompile(`^\+989\d{9}$`)
	phoneZeros  = regexp.MustCompile(`^00989\d{9}$`)
	phoneNoPlus = regexp.MustCompile(`^989\d{9}$`)
)

// NormalizePhone returns the canonical 09xxxxxxxxx form of an Iranian mobile
// number, or false when raw is not one.
func NormalizePhone(raw string) (string, bool) {
	p := phoneNoise.Replace(raw)
	switch {
	case phoneLocal.MatchString(p):
		return p, true
	case phonePlus.MatchString(p):
		return "0" + p[3:], true
	case phoneZeros.MatchString(p):
		return "0" + p[4:], true
	case phoneNoPlus.MatchString(p):
		return "0" + p[2:], true
	default:
		return "", false
	}
}
