package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"wishguard/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func newUser(phone string) *User {
	return &User{
		ID:          uuid.NewString(),
		PhoneNumber: phone,
		FirstName:   "Sara",
		CreatedAt:   time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *InMemoryStoreSuite) TestCreate() {
	ctx := context.Background()

	s.Run("stores a new phone number", func() {
		u := newUser("09120000001")
		s.Require().NoError(s.store.Create(ctx, u))

		exists, err := s.store.ExistsByPhone(ctx, u.PhoneNumber)
		s.Require().NoError(err)
		s.True(exists)

		found, err := s.store.FindByPhone(ctx, u.PhoneNumber)
		s.Require().NoError(err)
		s.Equal(u, found)
	})

	s.Run("rejects a registered phone number", func() {
		s.Require().NoError(s.store.Create(ctx, newUser("09120000002")))
		err := s.store.Create(ctx, newUser("09120000002"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown phone numbers are absent", func() {
		exists, err := s.store.ExistsByPhone(ctx, "09129999999")
		s.Require().NoError(err)
		s.False(exists)

		_, err = s.store.FindByPhone(ctx, "09129999999")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
