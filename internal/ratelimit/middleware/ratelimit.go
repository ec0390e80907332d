package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"wishguard/internal/antibot/config"
	"wishguard/internal/ratelimit/models"
	"wishguard/internal/ratelimit/service"
	dErrors "wishguard/pkg/domain-errors"
	"wishguard/pkg/platform/httputil"
	"wishguard/pkg/requestcontext"
)

// RateLimiter is the service method the middleware needs.
type RateLimiter interface {
	Check(ctx context.Context, action models.Action, identifier string, limit config.Limit) *models.Result
}

// Middleware applies named limits to whole routes. Limits that depend on the
// request body (per phone, per address) are checked inside the services.
type Middleware struct {
	limiter RateLimiter
	logger  *slog.Logger
}

func New(limiter RateLimiter, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Middleware{limiter: limiter, logger: logger}
}

// PerIP limits the wrapped route by client IP under the given action.
// Callers without a resolvable IP share the "unknown" bucket.
func (m *Middleware) PerIP(action models.Action, limit config.Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			if ip == "" {
				ip = "unknown"
			}
			result := m.limiter.Check(ctx, action, ip, limit)
			AddHeaders(w, result)
			if !result.Allowed {
				m.logger.InfoContext(ctx, "route rate limited",
					"action", action,
					"path", r.URL.Path,
					"retry_after", result.RetryAfter,
				)
				WriteExceeded(w, result, service.Message(limit))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AddHeaders sets the X-RateLimit-* headers.
func AddHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil {
		return
	}
	if result.Degraded {
		w.Header().Set("X-RateLimit-Status", "degraded")
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// WriteExceeded writes the 429 response.
func WriteExceeded(w http.ResponseWriter, result *models.Result, message string) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Success:    false,
		Message:    message,
		ErrorCode:  string(dErrors.CodeRateLimited),
		RetryAfter: result.RetryAfter,
	})
}
