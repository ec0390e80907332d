package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPReputation_ClearExpiredBlock(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	t.Run("elapsed block cleared", func(t *testing.T) {
		r := &IPReputation{IsBlocked: true, BlockedUntil: &past, BlockReason: "x"}
		assert.True(t, r.ClearExpiredBlock(now))
		assert.False(t, r.IsBlocked)
		assert.Nil(t, r.BlockedUntil)
		assert.Empty(t, r.BlockReason)
	})

	t.Run("active block kept", func(t *testing.T) {
		r := &IPReputation{IsBlocked: true, BlockedUntil: &future}
		assert.False(t, r.ClearExpiredBlock(now))
		assert.True(t, r.BlockedAt(now))
	})

	t.Run("indefinite block kept", func(t *testing.T) {
		r := &IPReputation{IsBlocked: true}
		assert.False(t, r.ClearExpiredBlock(now))
		assert.True(t, r.BlockedAt(now))
	})
}

func TestIPReputation_FailureRatio(t *testing.T) {
	assert.Equal(t, 0.0, (&IPReputation{}).FailureRatio())
	r := &IPReputation{RegistrationAttempts: 2, FailedOTPAttempts: 2, CaptchaFailures: 2}
	assert.Equal(t, 1.0, r.FailureRatio())
}

func TestCaptchaChallenge_StateAt(t *testing.T) {
	now := time.Now()
	base := CaptchaChallenge{MaxAttempts: 3, ExpiresAt: now.Add(time.Minute)}

	c := base
	assert.Equal(t, ChallengePending, c.StateAt(now))

	c = base
	c.AttemptsCount = 3
	assert.Equal(t, ChallengeExhausted, c.StateAt(now))

	c = base
	assert.Equal(t, ChallengeExpired, c.StateAt(now.Add(2*time.Minute)))

	c = base
	c.IsSolved = true
	c.AttemptsCount = 3
	assert.Equal(t, ChallengeSolved, c.StateAt(now.Add(2*time.Minute)))
}

func TestParseChallengeType(t *testing.T) {
	got, ok := ParseChallengeType("")
	assert.True(t, ok)
	assert.Equal(t, ChallengeMath, got)

	got, ok = ParseChallengeType(" text ")
	assert.True(t, ok)
	assert.Equal(t, ChallengeText, got)

	_, ok = ParseChallengeType("AUDIO")
	assert.False(t, ok)
}
