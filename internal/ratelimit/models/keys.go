package models

import "strings"

// SanitizeKeySegment escapes the key delimiter so a user-controlled identifier
// such as "09123:x" cannot address another action's bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewKey builds the cache key for an action and identifier.
func NewKey(action Action, identifier string) string {
	return string(action) + ":" + SanitizeKeySegment(identifier)
}
