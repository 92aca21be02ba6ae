package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInvalidInput = "invalid_input"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeInternal     = "internal_error"
	CodeUnauthorized = "unauthorized"
)

// GenericMessage is what callers see for internal failures.
const GenericMessage = "An internal error occurred. Please try again later."

type Error struct {
	Status int
	Code   string
	Field  string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		if e.Field != "" {
			return fmt.Sprintf("%s: %s", e.Field, e.Err.Error())
		}
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

// InvalidInput reports a malformed or out-of-range value for field.
func InvalidInput(field, format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeInvalidInput, Field: field, Err: fmt.Errorf(format, args...)}
}

func NotFound(entity string, id interface{}) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Err: fmt.Errorf("%s %v not found", entity, id)}
}

func Conflict(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeConflict, Err: fmt.Errorf(format, args...)}
}

// Internal wraps a collaborator or storage failure. The wrapped error is for logs only.
func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Err: err}
}

func Unauthorized(reason string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Err: errors.New(reason)}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// Message is the caller-facing text for err; internal details never leak.
func Message(err error) string {
	e, ok := As(err)
	if !ok || e.Code == CodeInternal {
		return GenericMessage
	}
	return e.Error()
}

// StatusOf maps err to an HTTP status, defaulting to 500.
func StatusOf(err error) int {
	if e, ok := As(err); ok && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// RowError is a row-level ingestion failure. It is collected, never raised.
type RowError struct {
	Row    int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Reason)
}
