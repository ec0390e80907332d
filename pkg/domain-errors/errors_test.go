package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	t.Run("wrapped domain error keeps its code", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeExpired, "code expired"))
		assert.Equal(t, CodeExpired, CodeOf(err))
		assert.True(t, Is(err, CodeExpired))
		assert.Equal(t, "code expired", MessageOf(err))
	})

	t.Run("plain error is internal", func(t *testing.T) {
		err := errors.New("boom")
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.False(t, Is(err, CodeExpired))
		assert.Equal(t, "internal error", MessageOf(err))
	})

	t.Run("wrap exposes cause", func(t *testing.T) {
		cause := errors.New("db down")
		err := Wrap(cause, CodeInternal, "failed to load")
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "db down")
	})
}
