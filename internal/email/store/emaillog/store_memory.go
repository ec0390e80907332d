package emaillog

import (
	"context"
	"sync"

	"wishguard/internal/email/models"
)

type InMemoryStore struct {
	mu      sync.Mutex
	entries []models.LogEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry *models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

// Entries returns a copy of every entry, oldest first.
func (s *InMemoryStore) Entries() []models.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LogEntry(nil), s.entries...)
}
