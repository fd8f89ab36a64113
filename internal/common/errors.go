// Package common defines shared constants and sentinel errors used across
// the credential service layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound        = errors.New("not found")
	ErrDuplicateUsername = errors.New("username already taken")

	// Service-level errors (generic/internal flow control).
	ErrorInternal   = errors.New("internal error")
	ErrStoreFailure = errors.New("store failure")

	// Input errors. ErrValidation is never returned bare, see ValidationError.
	ErrValidation = errors.New("validation error")

	// Credential lifecycle errors.
	ErrAuthFailed               = errors.New("invalid username or password")
	ErrUnauthenticated          = errors.New("unauthenticated")
	ErrCurrentPasswordIncorrect = errors.New("current password is incorrect")

	// Recovery flow errors.
	ErrUserNotFound          = errors.New("user not found")
	ErrSecurityNotConfigured = errors.New("security question not configured")
	ErrAnswerMismatch        = errors.New("recovery verification failed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// ValidationError reports a single malformed input field. It matches
// ErrValidation through errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a *ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// JoinValidation combines field errors into one error. It returns nil when
// errs is empty, so callers can collect problems and return the result as is.
func JoinValidation(errs []*ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	wrapped := make([]error, 0, len(errs))
	for _, e := range errs {
		wrapped = append(wrapped, e)
	}
	return errors.Join(wrapped...)
}

// ValidationErrors flattens a (possibly joined) validation error into its
// field errors, in the order they were collected.
func ValidationErrors(err error) []*ValidationError {
	var out []*ValidationError
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if ve, ok := e.(*ValidationError); ok {
			out = append(out, ve)
			return
		}
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		walk(errors.Unwrap(e))
	}
	walk(err)
	return out
}

// ValidationFields lists the fields reported by err.
func ValidationFields(err error) []string {
	var fields []string
	for _, ve := range ValidationErrors(err) {
		fields = append(fields, ve.Field)
	}
	return fields
}

// Reason codes returned to presentation layers. They are stable strings
// suitable for programmatic checks.
const (
	ReasonValidation               = "validation_error"
	ReasonDuplicateUsername        = "duplicate_username"
	ReasonUserNotFound             = "user_not_found"
	ReasonSecurityNotConfigured    = "security_not_configured"
	ReasonAnswerMismatch           = "answer_mismatch"
	ReasonCurrentPasswordIncorrect = "current_password_incorrect"
	ReasonUnauthenticated          = "unauthenticated"
	ReasonAuthFailed               = "auth_failed"
	ReasonStoreFailure             = "store_failure"
)

var reasons = []struct {
	err  error
	code string
}{
	{ErrValidation, ReasonValidation},
	{ErrDuplicateUsername, ReasonDuplicateUsername},
	{ErrUserNotFound, ReasonUserNotFound},
	{ErrSecurityNotConfigured, ReasonSecurityNotConfigured},
	{ErrAnswerMismatch, ReasonAnswerMismatch},
	{ErrCurrentPasswordIncorrect, ReasonCurrentPasswordIncorrect},
	{ErrUnauthenticated, ReasonUnauthenticated},
	{ErrInvalidToken, ReasonUnauthenticated},
	{ErrTokenExpired, ReasonUnauthenticated},
	{ErrRefreshTokenExpired, ReasonUnauthenticated},
	{ErrAuthFailed, ReasonAuthFailed},
}

// ReasonCode maps err to its machine-checkable reason code. Anything that is
// not a known domain error is reported as a store failure.
func ReasonCode(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return ReasonStoreFailure
}

// IsDomainError reports whether err carries one of the typed failures a
// caller is expected to handle, as opposed to an opaque store fault.
func IsDomainError(err error) bool {
	return err != nil && ReasonCode(err) != ReasonStoreFailure
}
