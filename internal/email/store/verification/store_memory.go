package verification

import (
	"context"
	"sync"
	"time"

	"wishguard/internal/email/models"
	"wishguard/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu   sync.Mutex
	rows map[string]*models.Verification
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[string]*models.Verification)}
}

func (s *InMemoryStore) Replace(_ context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, row := range s.rows {
		if row.Email == v.Email && row.Type == v.Type && !row.IsVerified {
			delete(s.rows, id)
		}
	}
	copied := *v
	s.rows[v.ID] = &copied
	return nil
}

func (s *InMemoryStore) GetPending(_ context.Context, token string) (*models.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.Token == token && !row.IsVerified {
			copied := *row
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) RecordAttempt(_ context.Context, id string, now time.Time) (*models.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if row.StateAt(now) != models.StatePending {
		return nil, sentinel.ErrExhausted
	}
	row.AttemptsCount++
	copied := *row
	return &copied, nil
}

func (s *InMemoryStore) MarkVerified(_ context.Context, id string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.IsVerified {
		return false, nil
	}
	row.IsVerified = true
	row.VerifiedAt = &now
	return true, nil
}

// PendingCount reports unverified tokens for (email, type).
func (s *InMemoryStore) PendingCount(email string, kind models.VerificationType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.Email == email && row.Type == kind && !row.IsVerified {
			n++
		}
	}
	return n
}
