package device

import (
	"context"
	"sync"
	"time"

	"wishguard/internal/antibot/models"
	"wishguard/pkg/platform/sentinel"
)

// InMemoryStore keeps fingerprints in process.
type InMemoryStore struct {
	mu      sync.Mutex
	devices map[string]*models.DeviceFingerprint
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{devices: make(map[string]*models.DeviceFingerprint)}
}

func (s *InMemoryStore) Increment(_ context.Context, hash string, attrs models.DeviceAttributes, attempts, successes int, now time.Time) (*models.DeviceFingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp, ok := s.devices[hash]
	if !ok {
		fp = &models.DeviceFingerprint{Hash: hash, Attributes: attrs, FirstSeen: now}
		s.devices[hash] = fp
	}
	// Screen and timezone are not part of the identity; keep the latest report.
	fp.Attributes.ScreenResolution = attrs.ScreenResolution
	fp.Attributes.Timezone = attrs.Timezone
	fp.RegistrationAttempts += attempts
	fp.SuccessfulRegistrations += successes
	fp.LastSeen = now

	copied := *fp
	return &copied, nil
}

func (s *InMemoryStore) Get(_ context.Context, hash string) (*models.DeviceFingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, ok := s.devices[hash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *fp
	return &copied, nil
}

func (s *InMemoryStore) SaveRisk(_ context.Context, hash string, score float64, suspicious bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, ok := s.devices[hash]
	if !ok {
		return sentinel.ErrNotFound
	}
	fp.RiskScore = score
	fp.IsSuspicious = suspicious
	return nil
}
