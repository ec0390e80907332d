package memory

import (
	"context"
	"slices"
	"sync"

	audit "wishguard/pkg/platform/audit"
)

// InMemoryStore keeps security events in process for tests and database-less runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.SecurityEvent
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListRecent returns up to limit events, newest first, optionally filtered by type.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int, types ...audit.EventType) ([]audit.SecurityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]audit.SecurityEvent, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(result) < limit; i-- {
		ev := s.events[i]
		if len(types) > 0 && !slices.Contains(types, ev.Type) {
			continue
		}
		result = append(result, ev)
	}
	return result, nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
