package behavior

import (
	"context"
	"sync"
	"time"

	"wishguard/internal/antibot/models"
)

// InMemoryStore keeps analyses in insertion order.
type InMemoryStore struct {
	mu       sync.RWMutex
	analyses []models.BehaviorAnalysis
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Save(_ context.Context, analysis *models.BehaviorAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses = append(s.analyses, *analysis)
	return nil
}

func (s *InMemoryStore) Stats(_ context.Context, since time.Time) (models.BehaviorStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		stats models.BehaviorStats
		sum   float64
	)
	for _, a := range s.analyses {
		if a.CreatedAt.Before(since) {
			continue
		}
		stats.Total++
		sum += a.BotProbability
		if !a.IsHumanLike {
			stats.BotLike++
		}
	}
	if stats.Total > 0 {
		stats.AvgBotProbability = sum / float64(stats.Total)
	}
	return stats, nil
}
