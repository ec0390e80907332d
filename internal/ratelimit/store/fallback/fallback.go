// Package fallback routes counter operations to an in-process store while the
// primary backend is failing.
package fallback

import (
	"context"
	"log/slog"
	"time"

	"wishguard/pkg/platform/circuit"
)

// CounterStore is the subset of counter store behavior the wrapper needs.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error)
}

// DegradedGauge is told when the wrapper switches backends.
type DegradedGauge interface {
	SetDegraded(degraded bool)
}

// Store answers from primary while it is healthy. After consecutive failures
// the breaker opens and answers come from secondary; the primary keeps being
// probed and takes over again after enough consecutive successes.
type Store struct {
	primary   CounterStore
	secondary CounterStore
	breaker   *circuit.Breaker
	logger    *slog.Logger
	gauge     DegradedGauge
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Store) {
		s.breaker = b
	}
}

func WithDegradedGauge(g DegradedGauge) Option {
	return func(s *Store) {
		s.gauge = g
	}
}

func New(primary, secondary CounterStore, opts ...Option) *Store {
	s := &Store{
		primary:   primary,
		secondary: secondary,
		breaker:   circuit.New("ratelimit-counter"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	count, resetAt, err := s.primary.Increment(ctx, key, window)
	if err != nil {
		if s.failure(ctx, err) {
			return s.secondary.Increment(ctx, key, window)
		}
		return 0, time.Time{}, err
	}
	if !s.success(ctx) {
		return s.secondary.Increment(ctx, key, window)
	}
	return count, resetAt, nil
}

func (s *Store) failure(ctx context.Context, err error) (useFallback bool) {
	useFallback, change := s.breaker.RecordFailure()
	if change.Opened {
		s.setDegraded(true)
		if s.logger != nil {
			s.logger.WarnContext(ctx, "rate limit backend failing, switching to in-memory counters",
				"breaker", s.breaker.Name(),
				"error", err,
			)
		}
	}
	return useFallback
}

func (s *Store) success(ctx context.Context) (usePrimary bool) {
	usePrimary, change := s.breaker.RecordSuccess()
	if change.Closed {
		s.setDegraded(false)
		if s.logger != nil {
			s.logger.InfoContext(ctx, "rate limit backend recovered", "breaker", s.breaker.Name())
		}
	}
	return usePrimary
}

func (s *Store) setDegraded(degraded bool) {
	if s.gauge != nil {
		s.gauge.SetDegraded(degraded)
	}
}
