package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when a remote call did not answer within its window.
	// It is retryable, unlike a RemoteRejection.
	ErrTimeout = errors.New("request timed out")

	// ErrConnection marks transport failures (dial refused, connection reset, ...).
	ErrConnection = errors.New("connection failed")
)

// ValidationError means a local precondition was violated. It is never sent to the backend.
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Constraint)
}

// NewValidationError builds a ValidationError with a formatted constraint.
func NewValidationError(field string, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:      field,
		Constraint: fmt.Sprintf(format, args...),
	}
}

// ConnectionError is raised when a push stream fails to establish or drops.
type ConnectionError struct {
	Stream string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("stream %s: connection failed: %v", e.Stream, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnection, e.Err}
}

// RemoteRejection means the backend refused a well-formed request.
type RemoteRejection struct {
	StatusCode int
	Reason     string
}

func (e *RemoteRejection) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("request rejected by server (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("request rejected by server (status %d): %s", e.StatusCode, e.Reason)
}

// DataIntegrityWarning reports malformed timing or price data coming from the backend.
// Callers degrade to a safe state instead of propagating it.
type DataIntegrityWarning struct {
	Field string
	Value string
	Err   error
}

func (e *DataIntegrityWarning) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("malformed %s: %q", e.Field, e.Value)
	}
	return fmt.Sprintf("malformed %s: %q: %v", e.Field, e.Value, e.Err)
}

func (e *DataIntegrityWarning) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsRejection reports whether err carries a RemoteRejection and returns it.
func IsRejection(err error) (*RemoteRejection, bool) {
	var target *RemoteRejection
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsNotFound reports whether the backend answered 404.
func IsNotFound(err error) bool {
	rejection, ok := IsRejection(err)
	return ok && rejection.StatusCode == 404
}
