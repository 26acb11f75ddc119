package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error pairs an HTTP status and machine code with the underlying cause.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, err error) *Error { return New(http.StatusBadRequest, code, err) }
func NotFound(code string, err error) *Error   { return New(http.StatusNotFound, code, err) }

// From extracts status and code from err, defaulting to 500/internal_error.
func From(err error) (int, string) {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		status := ae.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, ae.Code
	}
	return http.StatusInternalServerError, "internal_error"
}
