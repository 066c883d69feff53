package task

import (
	"errors"
	"fmt"
)

// Code classifies planner failures.
type Code string

const (
	CodeSprintClosed Code = "SPRINT_CLOSED" // Owning sprint or week is closed
	CodeValidation   Code = "VALIDATION"    // Malformed payload
	CodeConflict     Code = "CONFLICT"      // Duplicate week start, duplicate task id
	CodeNetwork      Code = "NETWORK"       // Transport failure
	CodeTimeout      Code = "TIMEOUT"       // Deadline exceeded
	CodeNotFound     Code = "NOT_FOUND"     // Stale id
	CodeForbidden    Code = "FORBIDDEN"     // Role gate or server refused the action
	CodeInternal     Code = "INTERNAL"      // Unexpected condition, never user-caused
)

// KnownCode reports whether s names one of the codes above.
func KnownCode(s string) (Code, bool) {
	switch c := Code(s); c {
	case CodeSprintClosed, CodeValidation, CodeConflict, CodeNetwork, CodeTimeout, CodeNotFound, CodeForbidden, CodeInternal:
		return c, true
	}
	return "", false
}

// Error is the typed error attached to a failed planner operation.
type Error struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

// NewError builds an *Error.
func NewError(code Code, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so errors.Is(err, ErrSprintClosed) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Op == "" && t.Message == ""
}

// Sentinels for errors.Is.
var (
	ErrSprintClosed = &Error{Code: CodeSprintClosed}
	ErrValidation   = &Error{Code: CodeValidation}
	ErrConflict     = &Error{Code: CodeConflict}
	ErrNetwork      = &Error{Code: CodeNetwork}
	ErrTimeout      = &Error{Code: CodeTimeout}
	ErrNotFound     = &Error{Code: CodeNotFound}
	ErrForbidden    = &Error{Code: CodeForbidden}
	ErrInternal     = &Error{Code: CodeInternal}
)

// CodeOf extracts the code of err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
