package shared

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates the resource does not exist or is invisible to
	// the caller. Invisible objects report not-found rather than forbidden
	// so their existence cannot be probed.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller can see the object but the
	// requested mutation is denied.
	ErrForbidden = errors.New("forbidden")
	// ErrIdempotencyConflict indicates a duplicate idempotency key.
	ErrIdempotencyConflict = errors.New("idempotent request already processed")
)

// ValidationError carries the structured reasons a submission was rejected.
type ValidationError struct {
	Issues []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Issues, "; ")
}

// NewValidationError wraps issue strings into a ValidationError.
func NewValidationError(issues ...string) *ValidationError {
	return &ValidationError{Issues: issues}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
