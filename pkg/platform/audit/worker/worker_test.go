package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "wishguard/pkg/platform/audit"
	"wishguard/pkg/platform/audit/publishers/security"
)

type recordingWriter struct {
	mu      sync.Mutex
	batches [][]audit.SecurityEvent
	fail    bool
}

func (r *recordingWriter) WriteBatch(_ context.Context, events []audit.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("broker unavailable")
	}
	r.batches = append(r.batches, events)
	return nil
}

func (r *recordingWriter) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func TestWorker_FlushBatches(t *testing.T) {
	buf := security.NewRingBuffer(10)
	for range 5 {
		buf.Enqueue(audit.SecurityEvent{Type: audit.EventOTPSent})
	}
	w := &recordingWriter{}
	NewWorker(buf, w, WithBatchSize(2)).Flush(context.Background())

	assert.Equal(t, 5, w.total())
	assert.Len(t, w.batches, 3)
	assert.Equal(t, 0, buf.Len())
}

func TestWorker_FailedBatchIsRequeued(t *testing.T) {
	buf := security.NewRingBuffer(10)
	buf.Enqueue(audit.SecurityEvent{Type: audit.EventIPBlocked})
	w := &recordingWriter{fail: true}
	NewWorker(buf, w).Flush(context.Background())

	assert.Equal(t, 1, buf.Len())
	assert.Equal(t, 0, w.total())
}

func TestWorker_RunFlushesOnShutdown(t *testing.T) {
	buf := security.NewRingBuffer(10)
	w := &recordingWriter{}
	wk := NewWorker(buf, w, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- wk.Run(ctx) }()

	buf.Enqueue(audit.SecurityEvent{Type: audit.EventBotDetected})
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, 1, w.total())
}
