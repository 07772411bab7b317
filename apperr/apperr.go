// Package apperr defines the application error carried from handlers to the
// global error middleware.
package apperr

import (
	"net/http"

	"github.com/pkg/errors"
)

// Error is an error with an HTTP status and a client-facing message.
type Error struct {
	Status  int
	Message string
	Errors  []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New returns an *Error wrapped with the current stack.
func New(status int, message string, details ...string) error {
	return errors.WithStack(&Error{Status: status, Message: message, Errors: details})
}

// Wrap keeps err as the cause of an *Error with the given status.
func Wrap(err error, status int, message string) error {
	return errors.WithStack(&Error{Status: status, Message: message, cause: err})
}

func BadRequest(message string, details ...string) error {
	return New(http.StatusBadRequest, message, details...)
}

func Unauthorized(message string) error { return New(http.StatusUnauthorized, message) }

func Forbidden(message string) error { return New(http.StatusForbidden, message) }

func NotFound(message string) error { return New(http.StatusNotFound, message) }

func Conflict(message string) error { return New(http.StatusConflict, message) }

func TooLarge(message string) error { return New(http.StatusRequestEntityTooLarge, message) }

func Internal(err error, message string) error {
	return Wrap(err, http.StatusInternalServerError, message)
}

// StatusOf reports the HTTP status for err, 500 for anything that is not an *Error.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return http.StatusInternalServerError
}
