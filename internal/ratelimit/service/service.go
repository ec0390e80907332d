package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"wishguard/internal/antibot/config"
	"wishguard/internal/ratelimit/metrics"
	"wishguard/internal/ratelimit/models"
	audit "wishguard/pkg/platform/audit"
	"wishguard/pkg/platform/privacy"
	"wishguard/pkg/requestcontext"
)

// Service enforces fixed-window limits per action and identifier. Counters are
// best effort: when the store fails the request is allowed.
type Service struct {
	counters       CounterStore
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	clock          func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(counters CounterStore, opts ...Option) (*Service, error) {
	if counters == nil {
		return nil, errors.New("counter store is required")
	}
	s := &Service{counters: counters}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Check counts one request for action/identifier and reports whether it fits
// within limit. The window starts at the first request.
func (s *Service) Check(ctx context.Context, action models.Action, identifier string, limit config.Limit) *models.Result {
	key := models.NewKey(action, identifier)
	count, resetAt, err := s.counters.Increment(ctx, key, limit.Window)
	if err != nil {
		s.metrics.IncrementErrors()
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "rate limit counter unavailable, allowing request",
				"action", string(action),
				"error", err,
			)
		}
		return &models.Result{Allowed: true, Limit: limit.Max, Remaining: limit.Max, Degraded: true}
	}

	result := &models.Result{
		Allowed:   count <= limit.Max,
		Limit:     limit.Max,
		Remaining: max(limit.Max-count, 0),
		ResetAt:   resetAt,
	}
	if result.Allowed {
		return result
	}

	result.RetryAfter = int(math.Ceil(resetAt.Sub(s.now(ctx)).Seconds()))
	if result.RetryAfter < 1 {
		result.RetryAfter = 1
	}
	s.metrics.IncrementRejections(string(action))
	if s.logger != nil {
		s.logger.InfoContext(ctx, "rate limited",
			"action", string(action),
			"identifier", mask(action, identifier),
			"count", count,
		)
	}
	if s.auditPublisher != nil {
		s.auditPublisher.Emit(ctx, audit.SecurityEvent{
			Type:        audit.EventRateLimited,
			Subject:     identifier,
			Description: fmt.Sprintf("%s limit of %d per %s exceeded", action, limit.Max, limit.Window),
			Details: map[string]string{
				"action": string(action),
			},
		})
	}
	return result
}

// Message is the client-facing text for a rejection.
func Message(limit config.Limit) string {
	return fmt.Sprintf("too many requests: at most %d per %s", limit.Max, limit.Window)
}

func mask(action models.Action, identifier string) string {
	switch action {
	case models.ActionOTPSend:
		return privacy.MaskPhone(identifier)
	case models.ActionRegistration, models.ActionCaptcha, models.ActionEmailIP:
		return privacy.AnonymizeIP(identifier)
	default:
		return "redacted"
	}
}

func (s *Service) now(ctx context.Context) time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return requestcontext.Now(ctx)
}
