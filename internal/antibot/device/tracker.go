// Package device tracks browser fingerprints across registration attempts and
// scores how likely a device is to be automated.
package device

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"wishguard/internal/antibot/config"
	"wishguard/internal/antibot/models"
	dErrors "wishguard/pkg/domain-errors"
	"wishguard/pkg/platform/sentinel"
	"wishguard/pkg/requestcontext"
)

// Store persists fingerprints. Increment must create the row on first sighting
// and apply the counter deltas atomically, returning the updated row.
type Store interface {
	Increment(ctx context.Context, hash string, attrs models.DeviceAttributes, attempts, successes int, now time.Time) (*models.DeviceFingerprint, error)
	Get(ctx context.Context, hash string) (*models.DeviceFingerprint, error)
	SaveRisk(ctx context.Context, hash string, score float64, suspicious bool) error
}

type Tracker struct {
	store  Store
	cfg    config.DeviceConfig
	logger *slog.Logger
	clock  func() time.Time
}

type Option func(*Tracker)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func WithConfig(cfg config.DeviceConfig) Option {
	return func(t *Tracker) {
		t.cfg = cfg
	}
}

// WithClock overrides the request-scoped clock.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		t.clock = clock
	}
}

func New(store Store, opts ...Option) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("device fingerprint store is required")
	}
	t := &Tracker{
		store: store,
		cfg:   config.Default().Device,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Track records a sighting of the device, counting a registration attempt when
// isAttempt is set, and recomputes its risk from the updated counters.
func (t *Tracker) Track(ctx context.Context, attrs models.DeviceAttributes, isAttempt bool) (*models.DeviceFingerprint, error) {
	attempts := 0
	if isAttempt {
		attempts = 1
	}
	return t.apply(ctx, attrs, attempts, 0)
}

// RecordSuccess counts a completed registration for the device.
func (t *Tracker) RecordSuccess(ctx context.Context, attrs models.DeviceAttributes) (*models.DeviceFingerprint, error) {
	return t.apply(ctx, attrs, 0, 1)
}

// Lookup returns the stored fingerprint without recording a sighting.
// A device never seen before yields nil, nil.
func (t *Tracker) Lookup(ctx context.Context, attrs models.DeviceAttributes) (*models.DeviceFingerprint, error) {
	fp, err := t.store.Get(ctx, Fingerprint(attrs))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load device fingerprint")
	}
	return fp, nil
}

func (t *Tracker) apply(ctx context.Context, attrs models.DeviceAttributes, attempts, successes int) (*models.DeviceFingerprint, error) {
	hash := Fingerprint(attrs)
	fp, err := t.store.Increment(ctx, hash, attrs, attempts, successes, t.now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to track device fingerprint")
	}

	score, suspicious := Score(t.cfg, fp)
	if err := t.store.SaveRisk(ctx, hash, score, suspicious); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save device risk")
	}
	if suspicious && !fp.IsSuspicious && t.logger != nil {
		t.logger.InfoContext(ctx, "device flagged suspicious",
			"fingerprint", hash[:12],
			"risk_score", score,
			"attempts", fp.RegistrationAttempts,
		)
	}
	fp.RiskScore = score
	fp.IsSuspicious = suspicious
	return fp, nil
}

func (t *Tracker) now(ctx context.Context) time.Time {
	if t.clock != nil {
		return t.clock()
	}
	return requestcontext.Now(ctx)
}
