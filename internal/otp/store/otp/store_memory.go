package otp

import (
	"context"
	"sync"
	"time"

	"wishguard/internal/otp/models"
	"wishguard/pkg/platform/sentinel"
)

type pendingKey struct {
	phone string
	kind  models.Type
}

// InMemoryStore keeps codes in process. The pending index enforces at most
// one unverified row per (phone, type).
type InMemoryStore struct {
	mu      sync.Mutex
	rows    map[string]*models.OTPVerification
	pending map[pendingKey]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rows:    make(map[string]*models.OTPVerification),
		pending: make(map[pendingKey]string),
	}
}

func (s *InMemoryStore) Replace(_ context.Context, o *models.OTPVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pendingKey{phone: o.PhoneNumber, kind: o.Type}
	if prev, ok := s.pending[key]; ok {
		delete(s.rows, prev)
	}
	copied := *o
	s.rows[o.ID] = &copied
	s.pending[key] = o.ID
	return nil
}

func (s *InMemoryStore) LatestPending(_ context.Context, phone string, kind models.Type) (*models.OTPVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.pending[pendingKey{phone: phone, kind: kind}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.rows[id]
	return &copied, nil
}

func (s *InMemoryStore) RecordAttempt(_ context.Context, id string, now time.Time) (*models.OTPVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.rows[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if o.StateAt(now) != models.StatePending {
		return nil, sentinel.ErrExhausted
	}
	o.AttemptsCount++
	copied := *o
	return &copied, nil
}

func (s *InMemoryStore) MarkVerified(_ context.Context, id string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.rows[id]
	if !ok || o.IsVerified {
		return false, nil
	}
	o.IsVerified = true
	o.VerifiedAt = &now
	delete(s.pending, pendingKey{phone: o.PhoneNumber, kind: o.Type})
	return true, nil
}

// PendingCount reports unverified rows for the key.
func (s *InMemoryStore) PendingCount(phone string, kind models.Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.rows {
		if o.PhoneNumber == phone && o.Type == kind && !o.IsVerified {
			n++
		}
	}
	return n
}
