// Package requestcontext carries per-request values from middleware to the
// services without importing net/http.
//
// Handlers read the session ID and client address once and pass them into
// the trackers explicitly; Now is the fallback clock for every service.
package requestcontext

import (
	"context"
	"time"
)

type key int

const (
	sessionIDKey key = iota
	clientIPKey
	userAgentKey
	requestIDKey
	requestTimeKey
)

func value[T any](ctx context.Context, k key) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

func str(ctx context.Context, k key) string {
	s, _ := value[string](ctx, k)
	return s
}

// SessionID is the anonymous session set by the session middleware.
func SessionID(ctx context.Context) string { return str(ctx, sessionIDKey) }

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

func ClientIP(ctx context.Context) string { return str(ctx, clientIPKey) }

func UserAgent(ctx context.Context) string { return str(ctx, userAgentKey) }

// WithClientMetadata stores the caller address and User-Agent. Service tests
// use it to stand in for the metadata middleware.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey, clientIP)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func RequestID(ctx context.Context) string { return str(ctx, requestIDKey) }

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// Now returns the time pinned for this request, or the wall clock outside
// of one (workers, tests without WithTime).
func Now(ctx context.Context) time.Time {
	if t, ok := value[time.Time](ctx, requestTimeKey); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t)
}
