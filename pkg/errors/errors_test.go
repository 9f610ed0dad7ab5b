package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypePredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"validation", NewValidation("bad input"), IsValidation},
		{"not found", NewNotFound("missing"), IsNotFound},
		{"conflict", NewConflict("duplicate"), IsConflict},
		{"not authenticated", NewNotAuthenticated("no viewer"), IsNotAuthenticated},
		{"transport", NewTransport("unreachable", nil), IsTransport},
		{"internal", NewInternal("broken", nil), IsInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.False(t, tt.check(stderrors.New("plain")))
			assert.False(t, tt.check(nil))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: missing", NewNotFound("missing").Error())

	cause := stderrors.New("connection refused")
	assert.Equal(t, "TRANSPORT: unreachable: connection refused", NewTransport("unreachable", cause).Error())
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := NewInternal("wrapper", cause)
	assert.ErrorIs(t, err, cause)
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "context"))
	})

	t.Run("preserves the app error type", func(t *testing.T) {
		wrapped := Wrap(NewConflict("duplicate"), "saving row")
		require.True(t, IsConflict(wrapped))
		assert.Equal(t, "CONFLICT: saving row: duplicate", wrapped.Error())
	})

	t.Run("plain errors become internal", func(t *testing.T) {
		cause := stderrors.New("boom")
		wrapped := Wrap(cause, "doing work")
		assert.True(t, IsInternal(wrapped))
		assert.ErrorIs(t, wrapped, cause)
	})
}
