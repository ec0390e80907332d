package publisher

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	audit "wishguard/pkg/platform/audit"
	"wishguard/pkg/platform/audit/publishers/security"
	"wishguard/pkg/requestcontext"
)

// Publisher is the security event logger. Every event is written to the
// structured log, appended synchronously to each configured store, and queued
// for the event stream when one is attached. Sink failures are logged and never
// surface to the caller: a broken audit sink must not fail a registration.
type Publisher struct {
	logger *slog.Logger
	stores []audit.Store
	stream *security.RingBuffer
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithStore adds a synchronous sink. May be given more than once.
func WithStore(store audit.Store) Option {
	return func(p *Publisher) {
		if store != nil {
			p.stores = append(p.stores, store)
		}
	}
}

// WithStream attaches the buffer drained by the stream worker.
func WithStream(buffer *security.RingBuffer) Option {
	return func(p *Publisher) {
		p.stream = buffer
	}
}

func NewPublisher(opts ...Option) *Publisher {
	p := &Publisher{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit enriches the event from the request context and fans it out.
func (p *Publisher) Emit(ctx context.Context, event audit.SecurityEvent) {
	event = enrich(ctx, event)

	if p.logger != nil {
		p.logger.Log(ctx, levelFor(event.Severity), "security event",
			"event_type", string(event.Type),
			"severity", string(event.Severity),
			"ip", event.IP,
			"session_id", event.SessionID,
			"request_id", event.RequestID,
			"subject", event.Subject,
			"description", event.Description,
		)
	}

	for _, store := range p.stores {
		if err := store.Append(ctx, event); err != nil && p.logger != nil {
			p.logger.ErrorContext(ctx, "failed to persist security event",
				"event_type", string(event.Type),
				"error", err,
			)
		}
	}

	if p.stream != nil {
		if evicted := p.stream.Enqueue(event); evicted && p.logger != nil {
			p.logger.WarnContext(ctx, "security event stream buffer full, oldest event dropped",
				"dropped_total", p.stream.Dropped(),
			)
		}
	}
}

func enrich(ctx context.Context, event audit.SecurityEvent) audit.SecurityEvent {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Severity == "" {
		event.Severity = event.Type.DefaultSeverity()
	}
	if event.IP == "" {
		event.IP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}
	if event.SessionID == "" {
		event.SessionID = requestcontext.SessionID(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	return event
}

func levelFor(sev audit.Severity) slog.Level {
	switch sev {
	case audit.SeverityCritical:
		return slog.LevelError
	case audit.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
