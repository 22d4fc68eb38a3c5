package storage

import (
	"errors"
	"fmt"
)

// Sentinel error kinds shared by every store implementation. The API layer
// selects status codes with errors.Is against these.
var (
	// ErrNotFound means a referenced entity does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrConflict means a unique constraint was violated (duplicate phone
	// or username) or a restricted reference blocks the operation.
	ErrConflict = errors.New("storage: conflict")

	// ErrInsufficientStock means a stock adjustment would drive stock
	// below zero. Callers should adjust quantities and resubmit.
	ErrInsufficientStock = errors.New("storage: insufficient stock")

	// ErrConcurrency means the operation lost a race on a contended row.
	// The whole operation is safe to retry once.
	ErrConcurrency = errors.New("storage: concurrent update conflict")

	// ErrUnavailable means the backing store is unreachable. The operation
	// had no effect.
	ErrUnavailable = errors.New("storage: store unavailable")
)

// ValidationError reports a constraint violated by caller input. Not
// retryable; the caller must correct the input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsRetryable reports whether the whole operation may be retried safely.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrency)
}
