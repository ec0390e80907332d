package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveNameFromEmail(t *testing.T) {
	first, last := DeriveNameFromEmail("sara.ahmadi@example.com")
	assert.Equal(t, "Sara", first)
	assert.Equal(t, "Ahmadi", last)

	first, last = DeriveNameFromEmail("reza@example.com")
	assert.Equal(t, "Reza", first)
	assert.Equal(t, "User", last)

	first, last = DeriveNameFromEmail("SARA_ahmadi+shop@example.com")
	assert.Equal(t, "Sara", first)
	assert.Equal(t, "Ahmadi", last)

	first, last = DeriveNameFromEmail("reza.1990@example.com")
	assert.Equal(t, "Reza", first)
	assert.Equal(t, "User", last)

	first, last = DeriveNameFromEmail("...@example.com")
	assert.Equal(t, "User", first)
	assert.Equal(t, "User", last)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("user+tag@example.co"))
	assert.True(t, Valid(" user@mail.example.ir "))
	assert.False(t, Valid("user@localhost"))
	assert.False(t, Valid("user example.com"))
	assert.False(t, Valid(""))
}

func TestIsDisposable(t *testing.T) {
	domains := []string{"mailinator.com", "yopmail.com"}
	assert.True(t, IsDisposable("bot@Mailinator.com", domains))
	assert.False(t, IsDisposable("user@gmail.com", domains))
	assert.True(t, IsDisposable("no-domain", domains))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "johndoe@gmail.com", Normalize(" John.Doe@Gmail.com "))
	assert.Equal(t, "john.doe@example.com", Normalize("John.Doe@example.com"))
}
