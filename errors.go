package memgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/memgo/index"
	"github.com/hupe1980/memgo/store"
)

var (
	// ErrNotFound is returned when a document or a user's persisted store
	// does not exist.
	ErrNotFound = errors.New("not found")
)

// ErrValidation indicates a rejected input (empty text, empty query,
// malformed user ID). The operation was never attempted.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrValidation struct {
	Field  string
	Reason string
	cause  error
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ErrValidation) Unwrap() error { return e.cause }

// ErrDimensionMismatch indicates that a persisted store's dimension
// disagrees with the configured embedder. The store is never silently
// truncated or padded.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrPersistence indicates a failed save or load of a user's store. The
// in-memory state is unchanged by a failed persist.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrPersistence struct {
	Op    string
	User  string
	cause error
}

func (e *ErrPersistence) Error() string {
	return fmt.Sprintf("persistence %s failed for user %q: %v", e.Op, e.User, e.cause)
}

func (e *ErrPersistence) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	// Input validation normalization.
	if errors.Is(err, store.ErrEmptyText) {
		return &ErrValidation{Field: "text", Reason: "must not be empty", cause: err}
	}
	if errors.Is(err, store.ErrEmptyQuery) {
		return &ErrValidation{Field: "query", Reason: "must not be empty", cause: err}
	}
	if errors.Is(err, store.ErrInvalidTopK) {
		return &ErrValidation{Field: "topK", Reason: "must not be negative", cause: err}
	}

	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	return err
}
