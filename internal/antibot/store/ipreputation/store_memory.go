package ipreputation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wishguard/internal/antibot/models"
	"wishguard/pkg/platform/sentinel"
)

// InMemoryStore keeps IP reputation rows in process.
type InMemoryStore struct {
	mu  sync.Mutex
	ips map[string]*models.IPReputation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{ips: make(map[string]*models.IPReputation)}
}

func (s *InMemoryStore) Increment(_ context.Context, ip string, counter models.IPCounter, now time.Time) (*models.IPReputation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep, ok := s.ips[ip]
	if !ok {
		rep = &models.IPReputation{IP: ip, FirstSeen: now}
	}
	switch counter {
	case models.CounterRegistrationAttempts:
		rep.RegistrationAttempts++
	case models.CounterSuccessfulRegistrations:
		rep.SuccessfulRegistrations++
	case models.CounterFailedOTPAttempts:
		rep.FailedOTPAttempts++
	case models.CounterCaptchaFailures:
		rep.CaptchaFailures++
	default:
		return nil, fmt.Errorf("unknown ip counter %q", counter)
	}
	rep.LastSeen = now
	s.ips[ip] = rep

	copied := *rep
	return &copied, nil
}

func (s *InMemoryStore) Get(_ context.Context, ip string) (*models.IPReputation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep, ok := s.ips[ip]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *rep
	return &copied, nil
}

func (s *InMemoryStore) ClearExpiredBlock(_ context.Context, ip string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep, ok := s.ips[ip]
	if !ok {
		return false, nil
	}
	return rep.ClearExpiredBlock(now), nil
}

func (s *InMemoryStore) SaveRisk(_ context.Context, ip string, score float64, isVPN bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep, ok := s.ips[ip]
	if !ok {
		return sentinel.ErrNotFound
	}
	rep.RiskScore = score
	rep.IsVPN = isVPN
	return nil
}

func (s *InMemoryStore) Block(_ context.Context, ip string, until time.Time, reason string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep, ok := s.ips[ip]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if rep.BlockedAt(now) {
		return false, nil
	}
	rep.IsBlocked = true
	rep.BlockedUntil = &until
	rep.BlockReason = reason
	return true, nil
}
