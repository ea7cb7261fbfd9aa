package apperrors

import (
	"errors"
	"fmt"
)

// Engagement errors
var (
	// ErrAuthRequired means the credential is missing or was rejected; recover by re-authenticating.
	ErrAuthRequired = errors.New("authentication required")

	// ErrDuplicateAction means the same action is already in flight for the subject.
	ErrDuplicateAction = errors.New("action already pending")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrTransport is matched by every *TransportError.
	ErrTransport = errors.New("engagement transport failed")

	// ErrSubjectNotFound is returned by subject sources when the post or comment does not exist.
	ErrSubjectNotFound = errors.New("subject not found")
)

// ValidationError reports invalid input rejected before any state change.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// TransportError wraps any non-authentication failure talking to the engagement service.
type TransportError struct {
	Action     string
	SubjectID  string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Action, e.SubjectID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Action, e.SubjectID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// IsAuthRequired reports whether err asks for re-authentication.
func IsAuthRequired(err error) bool {
	return errors.Is(err, ErrAuthRequired)
}
