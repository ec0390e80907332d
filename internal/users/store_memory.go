package users

import (
	"context"
	"sync"

	"wishguard/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	byPhone map[string]User
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byPhone: make(map[string]User)}
}

// Create stores u unless its phone number is already registered.
func (s *InMemoryStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPhone[u.PhoneNumber]; ok {
		return sentinel.ErrConflict
	}
	s.byPhone[u.PhoneNumber] = *u
	return nil
}

func (s *InMemoryStore) ExistsByPhone(_ context.Context, phone string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byPhone[phone]
	return ok, nil
}

func (s *InMemoryStore) FindByPhone(_ context.Context, phone string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byPhone[phone]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &u, nil
}
