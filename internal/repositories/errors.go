package repositories

import (
	"errors"
	"fmt"

	"github.com/socialconnect/backend/internal/docstore"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
)

// translate maps document store errors onto repository errors, keeping the
// operation name for context.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, docstore.ErrAlreadyExists):
		return ErrConflict
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
