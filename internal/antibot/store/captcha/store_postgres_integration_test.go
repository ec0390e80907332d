//go:build integration

package captcha_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"wishguard/internal/antibot/models"
	captchastore "wishguard/internal/antibot/store/captcha"
	"wishguard/pkg/platform/sentinel"
	"wishguard/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *captchastore.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = captchastore.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.now = time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.postgres.Truncate(context.Background(), "captcha_challenges"))
}

func (s *PostgresStoreSuite) create(sessionID string) *models.CaptchaChallenge {
	c := &models.CaptchaChallenge{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		IP:            "203.0.113.9",
		Type:          models.ChallengeMath,
		Question:      "3 + 4 = ?",
		CorrectAnswer: "7",
		MaxAttempts:   3,
		CreatedAt:     s.now,
		ExpiresAt:     s.now.Add(10 * time.Minute),
	}
	s.Require().NoError(s.store.Create(context.Background(), c))
	return c
}

func (s *PostgresStoreSuite) TestGetIsScopedToSession() {
	c := s.create("session-a")
	_, err := s.store.Get(context.Background(), c.ID, "session-b")
	s.ErrorIs(err, sentinel.ErrNotFound)

	got, err := s.store.Get(context.Background(), c.ID, "session-a")
	s.Require().NoError(err)
	s.Equal("3 + 4 = ?", got.Question)
	s.Nil(got.SolvedAt)
}

func (s *PostgresStoreSuite) TestConcurrentAttemptsAreCapped() {
	ctx := context.Background()
	c := s.create("session-a")

	var wg sync.WaitGroup
	var spent atomic.Int32
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.RecordAttempt(ctx, c.ID, "1", s.now); err == nil {
				spent.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(3), spent.Load())
	got, err := s.store.Get(ctx, c.ID, "session-a")
	s.Require().NoError(err)
	s.Equal(3, got.AttemptsCount)
	s.Equal(models.ChallengeExhausted, got.StateAt(s.now))
}

func (s *PostgresStoreSuite) TestMarkSolvedOnce() {
	ctx := context.Background()
	c := s.create("session-a")

	ok, err := s.store.MarkSolved(ctx, c.ID, s.now)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.store.MarkSolved(ctx, c.ID, s.now)
	s.Require().NoError(err)
	s.False(ok)

	_, err = s.store.RecordAttempt(ctx, c.ID, "7", s.now)
	s.ErrorIs(err, sentinel.ErrExhausted)
}
