package service

import (
	"context"
	"time"

	audit "wishguard/pkg/platform/audit"
)

// CounterStore increments fixed-window counters. Increment returns the count
// after the increment and when the window resets.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error)
}

// AuditPublisher receives RATE_LIMITED events.
type AuditPublisher = audit.Emitter
