package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "wishguard/pkg/domain-errors"
)

const (
	userID    = "7f1d7e2a-9c1b-4f1e-9a43-2f7c1f9d0b11"
	sessionID = "s-123"
)

func newService(t *testing.T, now *time.Time) *Service {
	t.Helper()
	svc, err := New("test-signing-key", WithClock(func() time.Time { return *now }))
	require.NoError(t, err)
	return svc
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestIssue(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc := newService(t, &now)

	pair, err := svc.Issue(userID, sessionID)
	require.NoError(t, err)
	assert.Equal(t, 900, pair.ExpiresIn)

	access, err := svc.Validate(pair.Access, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, userID, access.UserID)
	assert.Equal(t, sessionID, access.SessionID)
	assert.True(t, now.Add(15*time.Minute).Equal(access.ExpiresAt.Time))

	refresh, err := svc.Validate(pair.Refresh, KindRefresh)
	require.NoError(t, err)
	assert.True(t, now.Add(7*24*time.Hour).Equal(refresh.ExpiresAt.Time))
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc := newService(t, &now)
	pair, err := svc.Issue(userID, sessionID)
	require.NoError(t, err)

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := svc.Validate("invalid-token-string", KindAccess)
		assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	})

	t.Run("rejects a refresh token used as access", func(t *testing.T) {
		_, err := svc.Validate(pair.Refresh, KindAccess)
		assert.Equal(t, "wrong token type", dErrors.MessageOf(err))
	})

	t.Run("rejects tokens signed with another key", func(t *testing.T) {
		other, err := New("another-key")
		require.NoError(t, err)
		_, err = other.Validate(pair.Access, KindAccess)
		assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	})

	t.Run("rejects expired tokens", func(t *testing.T) {
		now = now.Add(16 * time.Minute)
		_, err := svc.Validate(pair.Access, KindAccess)
		assert.Equal(t, "token has expired", dErrors.MessageOf(err))
	})
}
