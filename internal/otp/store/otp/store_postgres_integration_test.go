//go:build integration

package otp_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"wishguard/internal/otp/models"
	otpstore "wishguard/internal/otp/store/otp"
	"wishguard/internal/otp/store/phonelog"
	"wishguard/pkg/platform/sentinel"
	"wishguard/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *otpstore.PostgresStore
	logs     *phonelog.PostgresStore
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
	s.store = otpstore.NewPostgres(s.postgres.DB)
	s.logs = phonelog.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.now = time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.postgres.Truncate(context.Background(), "otp_verifications", "phone_verification_logs"))
}

func (s *PostgresStoreSuite) newOTP(phone string) *models.OTPVerification {
	return &models.OTPVerification{
		ID:          uuid.NewString(),
		PhoneNumber: phone,
		Type:        models.TypeRegistration,
		CodeHash:    "$2a$04$hash",
		MaxAttempts: 3,
		CreatedAt:   s.now,
		ExpiresAt:   s.now.Add(5 * time.Minute),
	}
}

func (s *PostgresStoreSuite) pendingRows(phone string) int {
	var n int
	err := s.postgres.DB.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM otp_verifications WHERE phone_number = $1 AND NOT is_verified`, phone,
	).Scan(&n)
	s.Require().NoError(err)
	return n
}

func (s *PostgresStoreSuite) TestReplaceKeepsOnePendingRow() {
	ctx := context.Background()
	first := s.newOTP("09120000001")
	second := s.newOTP("09120000001")

	s.Require().NoError(s.store.Replace(ctx, first))
	_, err := s.store.RecordAttempt(ctx, first.ID, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Replace(ctx, second))

	s.Equal(1, s.pendingRows("09120000001"))
	got, err := s.store.LatestPending(ctx, "09120000001", models.TypeRegistration)
	s.Require().NoError(err)
	s.Equal(second.ID, got.ID)
	s.Zero(got.AttemptsCount)
}

func (s *PostgresStoreSuite) TestConcurrentReplace() {
	ctx := context.Background()
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.store.Replace(ctx, s.newOTP("09120000002")))
		}()
	}
	wg.Wait()
	s.Equal(1, s.pendingRows("09120000002"))
}

func (s *PostgresStoreSuite) TestConcurrentAttemptsAreCapped() {
	ctx := context.Background()
	o := s.newOTP("09120000003")
	s.Require().NoError(s.store.Replace(ctx, o))

	const goroutines = 30
	var wg sync.WaitGroup
	var spent, refused atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.RecordAttempt(ctx, o.ID, s.now)
			switch {
			case err == nil:
				spent.Add(1)
			case errors.Is(err, sentinel.ErrExhausted):
				refused.Add(1)
			default:
				s.Fail("unexpected error", err.Error())
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(3), spent.Load())
	s.Equal(int32(goroutines-3), refused.Load())
	got, err := s.store.LatestPending(ctx, o.PhoneNumber, o.Type)
	s.Require().NoError(err)
	s.Equal(3, got.AttemptsCount)
}

func (s *PostgresStoreSuite) TestAttemptRefusedAfterExpiry() {
	ctx := context.Background()
	o := s.newOTP("09120000004")
	s.Require().NoError(s.store.Replace(ctx, o))
	_, err := s.store.RecordAttempt(ctx, o.ID, s.now.Add(6*time.Minute))
	s.ErrorIs(err, sentinel.ErrExhausted)
}

func (s *PostgresStoreSuite) TestMarkVerifiedOnce() {
	ctx := context.Background()
	o := s.newOTP("09120000005")
	s.Require().NoError(s.store.Replace(ctx, o))

	ok, err := s.store.MarkVerified(ctx, o.ID, s.now)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.store.MarkVerified(ctx, o.ID, s.now)
	s.Require().NoError(err)
	s.False(ok)

	_, err = s.store.LatestPending(ctx, o.PhoneNumber, o.Type)
	s.ErrorIs(err, sentinel.ErrNotFound)

	// A verified row does not block a new pending one.
	s.Require().NoError(s.store.Replace(ctx, s.newOTP("09120000005")))
	s.Equal(1, s.pendingRows("09120000005"))
}

func (s *PostgresStoreSuite) TestPhoneLogCount() {
	ctx := context.Background()
	for i, action := range []models.LogAction{models.ActionSend, models.ActionSend, models.ActionVerify} {
		s.Require().NoError(s.logs.Append(ctx, &models.PhoneVerificationLog{
			PhoneNumber: "09120000006",
			Action:      action,
			Type:        models.TypeRegistration,
			Success:     true,
			CreatedAt:   s.now.Add(time.Duration(i) * time.Second),
		}))
	}

	n, err := s.logs.CountSince(ctx, "09120000006", []models.LogAction{models.ActionSend}, s.now.Add(-time.Minute))
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = s.logs.CountSince(ctx, "09120000006", []models.LogAction{models.ActionSend, models.ActionVerify}, s.now.Add(time.Second))
	s.Require().NoError(err)
	s.Equal(2, n)
}
