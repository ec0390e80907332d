// Package counter holds fixed-window counter stores. Every store increments
// the key and sets its expiry to the window on first write only.
package counter

import (
	"context"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
)

const shardCount = 32

// InMemoryStore is a process-local counter store, striped across shards so
// unrelated keys do not contend on one mutex.
type InMemoryStore struct {
	shards [shardCount]*shard
	clock  func() time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	count     int
	expiresAt time.Time
}

type MemoryOption func(*InMemoryStore)

func WithClock(clock func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		s.clock = clock
	}
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{clock: time.Now}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) shardFor(key string) *shard {
	return s.shards[murmur3.Sum32([]byte(key))%shardCount]
}

func (s *InMemoryStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	now := s.clock()
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		e = &entry{expiresAt: now.Add(window)}
		sh.entries[key] = e
	}
	e.count++
	return e.count, e.expiresAt, nil
}

// Sweep drops expired entries. Run it periodically on long-lived processes.
func (s *InMemoryStore) Sweep() int {
	now := s.clock()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, e := range sh.entries {
			if !now.Before(e.expiresAt) {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}
