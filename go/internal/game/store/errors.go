package store

import (
	"errors"

	"github.com/eichdmk/ansar-quiz/go/internal/apperrors"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a write violates a uniqueness rule.
var ErrConflict = errors.New("store: conflict")

// Translate maps store failures onto the application error taxonomy.
// what names the thing being read or written, e.g. "session".
// Errors that already carry a kind pass through unchanged.
func Translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, ErrNotFound):
		return apperrors.NotFound("%s not found", what)
	case errors.Is(err, ErrConflict):
		return apperrors.Conflict("%s already exists", what)
	default:
		return apperrors.Internal(err, what)
	}
}
