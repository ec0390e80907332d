// Package ipreputation keeps per-address counters, scores them and applies
// temporary blocks once an address crosses the block threshold.
package ipreputation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wishguard/internal/antibot/config"
	"wishguard/internal/antibot/metrics"
	"wishguard/internal/antibot/models"
	dErrors "wishguard/pkg/domain-errors"
	audit "wishguard/pkg/platform/audit"
	"wishguard/pkg/platform/privacy"
	"wishguard/pkg/platform/sentinel"
	"wishguard/pkg/requestcontext"
)

// Store persists reputation rows. Increment creates the row on first sighting.
// Block must be a no-op returning false while a block is already in force.
type Store interface {
	Increment(ctx context.Context, ip string, counter models.IPCounter, now time.Time) (*models.IPReputation, error)
	Get(ctx context.Context, ip string) (*models.IPReputation, error)
	ClearExpiredBlock(ctx context.Context, ip string, now time.Time) (bool, error)
	SaveRisk(ctx context.Context, ip string, score float64, isVPN bool) error
	Block(ctx context.Context, ip string, until time.Time, reason string, now time.Time) (bool, error)
}

const (
	ReasonBlocked    = "ip blocked"
	ReasonSuspicious = "suspicious ip, try again later"
)

// Verdict is the outcome of Check.
type Verdict struct {
	Allowed    bool
	Reason     string
	Reputation *models.IPReputation
}

type Tracker struct {
	store    Store
	detector ProxyDetector
	cfg      config.IPConfig
	logger   *slog.Logger
	events   audit.Emitter
	metrics  *metrics.Metrics
	clock    func() time.Time
}

type Option func(*Tracker)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func WithConfig(cfg config.IPConfig) Option {
	return func(t *Tracker) {
		t.cfg = cfg
	}
}

func WithProxyDetector(detector ProxyDetector) Option {
	return func(t *Tracker) {
		if detector != nil {
			t.detector = detector
		}
	}
}

// WithAuditPublisher receives IP_BLOCKED events.
func WithAuditPublisher(events audit.Emitter) Option {
	return func(t *Tracker) {
		t.events = events
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		t.clock = clock
	}
}

func New(store Store, opts ...Option) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("ip reputation store is required")
	}
	t := &Tracker{
		store:    store,
		detector: NoProxyDetector{},
		cfg:      config.Default().IP,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Check counts a registration attempt from ip and decides whether the address
// may proceed. An expired block is lifted first; the recompute that follows
// may apply a fresh one.
func (t *Tracker) Check(ctx context.Context, ip string) (*Verdict, error) {
	now := t.now(ctx)
	if _, err := t.store.ClearExpiredBlock(ctx, ip, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to refresh ip block")
	}

	rep, err := t.record(ctx, ip, models.CounterRegistrationAttempts, now)
	if err != nil {
		return nil, err
	}

	switch {
	case rep.BlockedAt(now):
		return &Verdict{
			Reason:     fmt.Sprintf("%s until %s", ReasonBlocked, blockedUntil(rep)),
			Reputation: rep,
		}, nil
	case rep.RiskScore > t.cfg.DenyThreshold:
		return &Verdict{Reason: ReasonSuspicious, Reputation: rep}, nil
	default:
		return &Verdict{Allowed: true, Reputation: rep}, nil
	}
}

// RecordFailure bumps a side-channel counter (failed OTP, failed CAPTCHA,
// successful registration) and re-evaluates risk and block state.
func (t *Tracker) RecordFailure(ctx context.Context, ip string, counter models.IPCounter) (*models.IPReputation, error) {
	now := t.now(ctx)
	if _, err := t.store.ClearExpiredBlock(ctx, ip, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to refresh ip block")
	}
	return t.record(ctx, ip, counter, now)
}

// RecordSuccess counts a completed registration from ip.
func (t *Tracker) RecordSuccess(ctx context.Context, ip string) (*models.IPReputation, error) {
	return t.RecordFailure(ctx, ip, models.CounterSuccessfulRegistrations)
}

// Lookup reads the row without counting anything. A block whose deadline has
// passed is cleared by the read. Unknown addresses yield nil, nil.
func (t *Tracker) Lookup(ctx context.Context, ip string) (*models.IPReputation, error) {
	if _, err := t.store.ClearExpiredBlock(ctx, ip, t.now(ctx)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to refresh ip block")
	}
	rep, err := t.store.Get(ctx, ip)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ip reputation")
	}
	return rep, nil
}

func (t *Tracker) record(ctx context.Context, ip string, counter models.IPCounter, now time.Time) (*models.IPReputation, error) {
	rep, err := t.store.Increment(ctx, ip, counter, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update ip reputation")
	}

	rep.IsVPN = t.detector.IsAnonymous(ip)
	rep.RiskScore = Score(t.cfg, rep)
	if err := t.store.SaveRisk(ctx, ip, rep.RiskScore, rep.IsVPN); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save ip risk")
	}

	if rep.RiskScore > t.cfg.BlockThreshold && !rep.BlockedAt(now) {
		until := now.Add(t.cfg.BlockDuration)
		applied, err := t.store.Block(ctx, ip, until, t.cfg.BlockReason, now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to block ip")
		}
		rep.IsBlocked = true
		rep.BlockedUntil = &until
		rep.BlockReason = t.cfg.BlockReason
		if applied {
			t.onBlocked(ctx, rep)
		}
	}
	return rep, nil
}

func (t *Tracker) onBlocked(ctx context.Context, rep *models.IPReputation) {
	t.metrics.IncrementIPBlocks()
	if t.logger != nil {
		t.logger.WarnContext(ctx, "ip blocked",
			"ip", privacy.AnonymizeIP(rep.IP),
			"risk_score", rep.RiskScore,
			"blocked_until", rep.BlockedUntil,
		)
	}
	if t.events != nil {
		t.events.Emit(ctx, audit.SecurityEvent{
			Type:        audit.EventIPBlocked,
			Subject:     rep.IP,
			Description: rep.BlockReason,
			Details: map[string]string{
				"risk_score":    fmt.Sprintf("%.0f", rep.RiskScore),
				"blocked_until": blockedUntil(rep),
			},
		})
	}
}

func blockedUntil(rep *models.IPReputation) string {
	if rep.BlockedUntil == nil {
		return "further notice"
	}
	return rep.BlockedUntil.UTC().Format(time.RFC3339)
}

func (t *Tracker) now(ctx context.Context) time.Time {
	if t.clock != nil {
		return t.clock()
	}
	return requestcontext.Now(ctx)
}
