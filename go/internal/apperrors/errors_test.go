package apperrors

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), KindInternal},
		{"direct", Conflict("already in queue"), KindConflict},
		{"wrapped", fmt.Errorf("request turn: %w", Forbidden("not your turn")), KindForbidden},
		{"internal wraps cause", Internal(sql.ErrConnDone, "lock session"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("submit: %w", NotFound("question %s not found", "q1"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "submit: question q1 not found", err.Error())
}

func TestInternalKeepsCauseButHidesMessage(t *testing.T) {
	err := Internal(sql.ErrConnDone, "lock session")

	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Equal(t, "internal error", Message(err))
	assert.Equal(t, "not your turn", Message(Forbidden("not your turn")))
	assert.Equal(t, "internal error", Message(errors.New("raw")))
}
