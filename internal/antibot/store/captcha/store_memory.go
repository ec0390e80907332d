package captcha

import (
	"context"
	"sync"
	"time"

	"wishguard/internal/antibot/models"
	"wishguard/pkg/platform/sentinel"
)

// InMemoryStore keeps challenges in process. Attempt accounting happens under
// the store mutex, matching the conditional UPDATE of the Postgres store.
type InMemoryStore struct {
	mu         sync.Mutex
	challenges map[string]*models.CaptchaChallenge
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{challenges: make(map[string]*models.CaptchaChallenge)}
}

func (s *InMemoryStore) Create(_ context.Context, c *models.CaptchaChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.challenges[c.ID]; ok {
		return sentinel.ErrConflict
	}
	copied := *c
	s.challenges[c.ID] = &copied
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id, sessionID string) (*models.CaptchaChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok || c.SessionID != sessionID {
		return nil, sentinel.ErrNotFound
	}
	return clone(c), nil
}

func (s *InMemoryStore) RecordAttempt(_ context.Context, id, answer string, now time.Time) (*models.CaptchaChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if c.StateAt(now) != models.ChallengePending {
		return nil, sentinel.ErrExhausted
	}
	c.AttemptsCount++
	c.UserAnswer = answer
	return clone(c), nil
}

func (s *InMemoryStore) MarkSolved(_ context.Context, id string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if c.IsSolved {
		return false, nil
	}
	c.IsSolved = true
	solvedAt := now
	c.SolvedAt = &solvedAt
	return true, nil
}

func clone(c *models.CaptchaChallenge) *models.CaptchaChallenge {
	copied := *c
	if c.SolvedAt != nil {
		t := *c.SolvedAt
		copied.SolvedAt = &t
	}
	return &copied
}
