package email

import (
	"regexp"
	"slices"
	"strings"
)

var addressPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Valid reports whether address is syntactically acceptable.
func Valid(address string) bool {
	return addressPattern.MatchString(strings.TrimSpace(address))
}

// Domain returns the lower-cased part after the last '@', or "".
func Domain(address string) string {
	at := strings.LastIndexByte(address, '@')
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(address[at+1:]))
}

// IsDisposable reports whether the address belongs to one of the listed
// throwaway domains. Addresses without a domain count as disposable.
func IsDisposable(address string, domains []string) bool {
	d := Domain(address)
	if d == "" {
		return true
	}
	return slices.Contains(domains, d)
}

// Normalize lower-cases the address and drops dots from gmail local parts,
// so aliases of one mailbox share rate limits and tokens.
func Normalize(address string) string {
	address = strings.ToLower(strings.TrimSpace(address))
	local, domain, ok := strings.Cut(address, "@")
	if ok && domain == "gmail.com" {
		return strings.ReplaceAll(local, ".", "") + "@gmail.com"
	}
	return address
}
