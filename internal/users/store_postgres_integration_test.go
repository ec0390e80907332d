//go:build integration

package users_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"wishguard/internal/users"
	"wishguard/pkg/platform/sentinel"
	"wishguard/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *users.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = users.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background(), "users"))
}

func (s *PostgresStoreSuite) TestCreateMapsUniqueViolation() {
	ctx := context.Background()
	u := &users.User{
		ID:          uuid.NewString(),
		PhoneNumber: "09120000001",
		FirstName:   "Sara",
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.Create(ctx, u))

	dup := *u
	dup.ID = uuid.NewString()
	s.ErrorIs(s.store.Create(ctx, &dup), sentinel.ErrConflict)

	found, err := s.store.FindByPhone(ctx, u.PhoneNumber)
	s.Require().NoError(err)
	s.Equal(u.ID, found.ID)
	s.True(found.CreatedAt.Equal(u.CreatedAt))
}
