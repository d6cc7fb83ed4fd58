// Package errors defines the error taxonomy shared by every public operation
// of the auth core. Each failure carries a stable code, a human-readable
// message, an optional cause, and the HTTP status it maps to at the edge.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Authentication failures. Definitive rejections, never retried.
	ErrCodeInvalidCredentials  ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeInvalidRefreshToken ErrorCode = "INVALID_REFRESH_TOKEN"
	ErrCodeTokenExpired        ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTokenMalformed      ErrorCode = "TOKEN_MALFORMED"
	ErrCodeSignatureInvalid    ErrorCode = "SIGNATURE_INVALID"
	ErrCodeWrongTokenKind      ErrorCode = "WRONG_TOKEN_KIND"

	// Authorization-state failures. Distinct from credential failures so the
	// caller can show a different message.
	ErrCodeSubjectNotActive ErrorCode = "SUBJECT_NOT_ACTIVE"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"

	// Lookup failures. SubjectNotFound after a token was already accepted is
	// a consistency fault and maps to a server error, not a client error.
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeSubjectNotFound ErrorCode = "SUBJECT_NOT_FOUND"

	// Infrastructure failures. Retryable at the caller's discretion; the core
	// fails fast and never retries internally.
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"

	// Signing key errors
	ErrCodeSigningKeyUnavailable ErrorCode = "SIGNING_KEY_UNAVAILABLE"

	// Validation and configuration errors
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Error represents a standardized error with context
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Cause      error     `json:"-"`
	HTTPStatus int       `json:"http_status"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus(code),
	}
}

// Wrap wraps an existing error with a taxonomy code
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Cause:      err,
		HTTPStatus: httpStatus(code),
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		Cause:      err,
		HTTPStatus: httpStatus(code),
	}
}

// httpStatus returns the HTTP status code an error code surfaces as
func httpStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidCredentials, ErrCodeInvalidRefreshToken, ErrCodeTokenExpired,
		ErrCodeTokenMalformed, ErrCodeSignatureInvalid, ErrCodeWrongTokenKind:
		return http.StatusUnauthorized
	case ErrCodeSubjectNotActive, ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidInput, ErrCodeInvalidConfig:
		return http.StatusBadRequest
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeSubjectNotFound, ErrCodeSigningKeyUnavailable, ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf extracts the error code from an error
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// HTTPStatusOf extracts the HTTP status from an error
func HTTPStatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode reports whether err carries the given taxonomy code
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// Common constructors

// NewInvalidCredentials creates the credential rejection used for both an
// unknown identifier and a wrong secret, so callers cannot enumerate accounts.
func NewInvalidCredentials() *Error {
	return New(ErrCodeInvalidCredentials, "invalid credentials")
}

// NewInvalidRefreshToken creates the rejection for an unrecognized refresh token
func NewInvalidRefreshToken() *Error {
	return New(ErrCodeInvalidRefreshToken, "invalid refresh token")
}

// NewSubjectNotActive creates the rejection for a subject outside ACTIVE status
func NewSubjectNotActive(status string) *Error {
	return New(ErrCodeSubjectNotActive, fmt.Sprintf("subject is not active: %s", status))
}

// NewNotFound creates a lookup failure for a missing record
func NewNotFound(what string) *Error {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", what))
}

// NewUnavailable wraps an infrastructure failure as retryable
func NewUnavailable(err error, what string) *Error {
	return Wrap(err, ErrCodeUnavailable, fmt.Sprintf("%s unavailable", what))
}
