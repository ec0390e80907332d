package worker

import (
	"context"
	"log/slog"
	"time"

	audit "wishguard/pkg/platform/audit"
	"wishguard/pkg/platform/audit/publishers/security"
)

// BatchWriter ships a batch of security events to an external stream.
type BatchWriter interface {
	WriteBatch(ctx context.Context, events []audit.SecurityEvent) error
}

// Worker drains the ring buffer into a BatchWriter on a fixed interval.
// Failed batches are requeued; the buffer bounds memory if the stream stays down.
type Worker struct {
	buffer    *security.RingBuffer
	writer    BatchWriter
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

type Option func(*Worker)

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func NewWorker(buffer *security.RingBuffer, writer BatchWriter, opts ...Option) *Worker {
	w := &Worker{
		buffer:    buffer,
		writer:    writer,
		interval:  500 * time.Millisecond,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains until ctx is cancelled, then makes one final flush attempt
// bounded by a short timeout.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			w.Flush(flushCtx)
			return ctx.Err()
		case <-ticker.C:
			w.Flush(ctx)
		}
	}
}

// Flush writes everything currently buffered. It stops at the first failure.
func (w *Worker) Flush(ctx context.Context) {
	for {
		batch := w.buffer.DequeueBatch(w.batchSize)
		if len(batch) == 0 {
			return
		}
		if err := w.writer.WriteBatch(ctx, batch); err != nil {
			w.buffer.Requeue(batch)
			if w.logger != nil {
				w.logger.WarnContext(ctx, "security event stream write failed",
					"error", err,
					"batch", len(batch),
					"buffered", w.buffer.Len(),
				)
			}
			return
		}
	}
}
