// Package metadata records who is calling: the client IP and User-Agent the
// risk engine scores.
package metadata

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"wishguard/pkg/requestcontext"
)

const unknownIP = "unknown"

// ClientMetadata stores the caller's IP and User-Agent on the request context.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIP(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP resolves the caller address. The first X-Forwarded-For hop wins,
// then X-Real-IP, then the socket peer. Header values that do not parse as
// an address are skipped rather than trusted.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip, ok := parseIP(first); ok {
			return ip
		}
	}
	if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
		return ip
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if ip, ok := parseIP(host); ok {
		return ip
	}
	return unknownIP
}

func parseIP(raw string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
