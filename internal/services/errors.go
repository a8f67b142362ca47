package services

import "errors"

// Service-level sentinel errors. Handlers map these to HTTP status codes.
var (
	// ErrUnauthorized covers both "conversation does not exist" and "caller is
	// not a participant": outsiders cannot distinguish the two.
	ErrUnauthorized = errors.New("user is not a participant of this conversation")

	ErrValidation = errors.New("input validation failed")

	// Auth glue errors.
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrHashingPassword    = errors.New("failed to hash password")
	ErrCreatingToken      = errors.New("failed to create access token")
)

// ValidationError carries per-field messages for 422 responses. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return ErrValidation.Error() }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// invalid builds a single-field validation error.
func invalid(field, message string) error {
	return &ValidationError{Fields: map[string]string{field: message}}
}
