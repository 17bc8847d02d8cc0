package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		err := New(CodeAlreadyVoted, "voter has already voted")
		assert.True(t, HasCode(err, CodeAlreadyVoted))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("wrapped by fmt", func(t *testing.T) {
		err := fmt.Errorf("cast vote: %w", New(CodeElectionClosed, "closed"))
		assert.True(t, Is(err, CodeElectionClosed))
	})

	t.Run("untyped error", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "failed to append block")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Contains(t, err.Error(), "connection reset")
}
