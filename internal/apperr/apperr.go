// Package apperr defines the user-visible error taxonomy shared by the
// authentication and verification flows. Every error carries a kind that
// the transport layer maps to an HTTP status; anything that is not an
// *apperr.Error is treated as an internal failure and propagated as-is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a terminal, user-visible failure.
type Kind int

const (
	KindInternal Kind = iota
	KindConflict
	KindUnauthorized
	KindNotFound
	KindBadRequest
	KindForbidden
)

// Error is a kinded, user-visible error.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a uniqueness violation (phone or email already taken).
func Conflict(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

// Unauthorized reports bad credentials, a bad or expired OTP, or an
// invalid or expired token.
func Unauthorized(format string, args ...interface{}) *Error {
	return newf(KindUnauthorized, format, args...)
}

// NotFound reports that no matching user exists.
func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

// BadRequest reports an invalid state transition, such as verifying an
// already-verified phone or deciding a non-pending request.
func BadRequest(format string, args ...interface{}) *Error {
	return newf(KindBadRequest, format, args...)
}

// Forbidden reports a role or authorization denial.
func Forbidden(format string, args ...interface{}) *Error {
	return newf(KindForbidden, format, args...)
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to its HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// StatusText returns the NestJS-style error label for an error, e.g.
// "Conflict" or "Internal Server Error".
func StatusText(err error) string {
	return http.StatusText(HTTPStatus(err))
}
