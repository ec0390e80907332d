package security

import (
	"sync"

	audit "wishguard/pkg/platform/audit"
)

// RingBuffer is a bounded, thread-safe queue of security events awaiting
// shipment to the event stream. When full, the oldest event is dropped.
type RingBuffer struct {
	mu       sync.Mutex
	events   []audit.SecurityEvent
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int
	dropped  int64
}

// NewRingBuffer creates a ring buffer with the given capacity (default 10000).
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &RingBuffer{
		events:   make([]audit.SecurityEvent, capacity),
		capacity: capacity,
	}
}

// Enqueue adds an event, evicting the oldest one if the buffer is full.
// It reports whether an event was evicted.
func (b *RingBuffer) Enqueue(event audit.SecurityEvent) (evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		evicted = true
	}

	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
	return evicted
}

// DequeueBatch removes up to n events in FIFO order.
func (b *RingBuffer) DequeueBatch(n int) []audit.SecurityEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 || n <= 0 {
		return nil
	}
	n = min(n, b.count)

	result := make([]audit.SecurityEvent, n)
	for i := range n {
		result[i] = b.events[b.tail]
		b.events[b.tail] = audit.SecurityEvent{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return result
}

// Requeue puts a failed batch back at the head of the queue, dropping the
// oldest entries if they no longer fit.
func (b *RingBuffer) Requeue(events []audit.SecurityEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(events) - 1; i >= 0; i-- {
		if b.count >= b.capacity {
			b.dropped += int64(i + 1)
			return
		}
		b.tail = (b.tail - 1 + b.capacity) % b.capacity
		b.events[b.tail] = events[i]
		b.count++
	}
}

func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of events lost to overflow.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
