// Package privacy reduces personal data before it reaches operational logs.
package privacy

import (
	"net"
	"strings"
)

// AnonymizeIP masks an IP to its /24 (IPv4) or /48 (IPv6) network.
// Unparseable input is returned redacted.
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "redacted"
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}

// MaskPhone keeps the last four digits of a phone number.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
