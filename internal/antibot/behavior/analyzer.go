// Package behavior scores client-reported form telemetry for bot-likeness.
package behavior

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"wishguard/internal/antibot/config"
	"wishguard/internal/antibot/metrics"
	"wishguard/internal/antibot/models"
	dErrors "wishguard/pkg/domain-errors"
	"wishguard/pkg/requestcontext"
)

// Store appends analyses; rows are never updated.
type Store interface {
	Save(ctx context.Context, analysis *models.BehaviorAnalysis) error
	Stats(ctx context.Context, since time.Time) (models.BehaviorStats, error)
}

// Input is one interaction to analyze. FingerprintHash is empty when the
// device has not been tracked yet.
type Input struct {
	SessionID       string
	IP              string
	FingerprintHash string
	Telemetry       models.Telemetry
}

type Analyzer struct {
	store   Store
	cfg     config.BehaviorConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
}

type Option func(*Analyzer)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

func WithConfig(cfg config.BehaviorConfig) Option {
	return func(a *Analyzer) {
		a.cfg = cfg
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) {
		a.metrics = m
	}
}

func WithClock(clock func() time.Time) Option {
	return func(a *Analyzer) {
		a.clock = clock
	}
}

func New(store Store, opts ...Option) (*Analyzer, error) {
	if store == nil {
		return nil, errors.New("behavior store is required")
	}
	a := &Analyzer{
		store: store,
		cfg:   config.Default().Behavior,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Analyze scores the telemetry and persists the result once.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (*models.BehaviorAnalysis, error) {
	p := BotProbability(a.cfg, in.Telemetry)
	analysis := &models.BehaviorAnalysis{
		ID:              uuid.NewString(),
		SessionID:       in.SessionID,
		IP:              in.IP,
		FingerprintHash: in.FingerprintHash,
		Telemetry:       in.Telemetry,
		BotProbability:  p,
		IsHumanLike:     p < a.cfg.HumanLikeBelow,
		CreatedAt:       a.now(ctx),
	}
	if err := a.store.Save(ctx, analysis); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save behavior analysis")
	}
	a.metrics.ObserveBotProbability(p)
	if !analysis.IsHumanLike && a.logger != nil {
		a.logger.InfoContext(ctx, "non-human behavior",
			"session_id", in.SessionID,
			"bot_probability", p,
		)
	}
	return analysis, nil
}

// Stats summarizes analyses created at or after since.
func (a *Analyzer) Stats(ctx context.Context, since time.Time) (models.BehaviorStats, error) {
	stats, err := a.store.Stats(ctx, since)
	if err != nil {
		return models.BehaviorStats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load behavior stats")
	}
	return stats, nil
}

func (a *Analyzer) now(ctx context.Context) time.Time {
	if a.clock != nil {
		return a.clock()
	}
	return requestcontext.Now(ctx)
}
