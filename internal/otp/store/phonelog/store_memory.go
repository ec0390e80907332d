package phonelog

import (
	"context"
	"slices"
	"sync"
	"time"

	"wishguard/internal/otp/models"
)

type InMemoryStore struct {
	mu      sync.Mutex
	entries []models.PhoneVerificationLog
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry *models.PhoneVerificationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *InMemoryStore) CountSince(_ context.Context, phone string, actions []models.LogAction, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.PhoneNumber == phone && !e.CreatedAt.Before(since) && slices.Contains(actions, e.Action) {
			n++
		}
	}
	return n, nil
}

// Entries returns a copy of every entry for phone, oldest first.
func (s *InMemoryStore) Entries(phone string) []models.PhoneVerificationLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PhoneVerificationLog
	for _, e := range s.entries {
		if e.PhoneNumber == phone {
			out = append(out, e)
		}
	}
	return out
}
