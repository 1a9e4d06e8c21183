// Package apperrors defines the error taxonomy shared by the REST and MCP
// surfaces. Every failure that crosses a component boundary is an *Error with
// a Kind; the dispatch layer is the single place kinds become HTTP statuses.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into one of the gateway's failure categories.
type Kind string

const (
	KindConfigurationInvalid Kind = "configuration_invalid"
	KindUnauthenticated      Kind = "unauthenticated"
	KindPermissionDenied     Kind = "permission_denied"
	KindNotFound             Kind = "not_found"
	KindValidationFailed     Kind = "validation_failed"
	KindForeignKeyViolation  Kind = "foreign_key_violation"
	KindNullViolation        Kind = "null_violation"
	KindInvalidValue         Kind = "invalid_value"
	KindConflict             Kind = "conflict"
	KindUnavailable          Kind = "unavailable"
	KindInternal             Kind = "internal_error"
)

// HTTPStatus maps a kind to its fixed protocol status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidationFailed, KindForeignKeyViolation, KindNullViolation, KindInvalidValue:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the domain error carried between components.
// Detail and Constraint come from the native database error and are only
// serialized when the deployment opts into exposing them.
type Error struct {
	Kind       Kind
	Message    string
	Detail     string
	Constraint string
	Details    []string
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the native error for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new error of the given kind.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Validation is shorthand for the most common builder/validator failure.
func Validation(format string, args ...any) *Error {
	return New(KindValidationFailed, format, args...)
}

// NotFound is shorthand for a missing route segment or row.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// KindOf extracts the kind from any error, defaulting to KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// AsError converts any error to an *Error, wrapping unknown errors
// as internal failures so the dispatch boundary always has a kind.
func AsError(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Kind: KindInternal, Message: "unexpected error", cause: err}
}
