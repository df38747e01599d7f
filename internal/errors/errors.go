package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrSourceUnavailable = "SOURCE_UNAVAILABLE"
	ErrMalformedSource   = "MALFORMED_SOURCE"
	ErrCounterReset      = "COUNTER_RESET"
	ErrConfig            = "CONFIG"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Unavailable reports an OS data source that could not be read.
func Unavailable(err error, format string, args ...any) *Error {
	return &Error{Code: ErrSourceUnavailable, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Malformed reports an OS data source with unexpected content.
func Malformed(err error, format string, args ...any) *Error {
	return &Error{Code: ErrMalformedSource, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	if e.Suggestion != "" {
		b.WriteString(" (")
		b.WriteString(e.Suggestion)
		b.WriteString(")")
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
// The outermost structured error decides.
func IsCode(err error, code string) bool {
	return Code(err) == code
}

// Code returns the code of the outermost structured Error, or "".
func Code(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRecoverable reports whether err should be retried on the next tick
// rather than aborting the caller.
func IsRecoverable(err error) bool {
	switch Code(err) {
	case ErrSourceUnavailable, ErrMalformedSource, ErrCounterReset:
		return true
	}
	return false
}
