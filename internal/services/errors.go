package services

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a service either is one of these,
// wraps one of these, or is an unexpected store failure.
var (
	ErrValidation = errors.New("validation failed")
	ErrAuth       = errors.New("authentication failed")
	ErrPermission = errors.New("permission denied")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// ErrAssignmentConflict is reported as a bad request rather than 409.
	ErrAssignmentConflict = fmt.Errorf("%w: technician assigned elsewhere", ErrConflict)
)

// Error pairs an error kind with a human-readable message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error { return newError(ErrValidation, format, args...) }

func NotFound(format string, args ...any) error { return newError(ErrNotFound, format, args...) }

func Conflict(format string, args ...any) error { return newError(ErrConflict, format, args...) }

func Permission(format string, args ...any) error { return newError(ErrPermission, format, args...) }

func AssignmentConflict(format string, args ...any) error {
	return newError(ErrAssignmentConflict, format, args...)
}

var (
	ErrEmailTaken         = &Error{Kind: ErrConflict, Message: "email already registered"}
	ErrInvalidCredentials = &Error{Kind: ErrAuth, Message: "invalid email or password"}
	ErrAccountPending     = &Error{Kind: ErrAuth, Message: "account is pending administrator approval"}
	ErrInvalidToken       = &Error{Kind: ErrAuth, Message: "invalid or expired refresh token"}
	ErrUserNotFound       = &Error{Kind: ErrNotFound, Message: "user not found"}
)

// IsKnown reports whether err carries one of the kinds above, as opposed to an
// unexpected store failure.
func IsKnown(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
