package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones with a
// specialised message still match their predefined sentinel.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Approval sequencing errors. These are caller errors and are never retried.
var (
	ErrStageMismatch       = New("STAGE_MISMATCH", http.StatusConflict, "approval stage mismatch")
	ErrAlreadyTerminal     = New("ALREADY_TERMINAL", http.StatusConflict, "outing request already finalized")
	ErrMissingPrerequisite = New("MISSING_PREREQUISITE", http.StatusPreconditionFailed, "prior approval stage missing")
	ErrAlreadyHandled      = New("ALREADY_HANDLED", http.StatusConflict, "outing request was updated concurrently")
)

// Gate pass errors. AlreadyUsed is kept apart from Invalid so operators can
// tell a replayed pass from a tampered one.
var (
	ErrTokenInvalid       = New("TOKEN_INVALID", http.StatusBadRequest, "invalid gate pass")
	ErrTokenExpired       = New("TOKEN_EXPIRED", http.StatusGone, "gate pass expired")
	ErrTokenAlreadyUsed   = New("TOKEN_ALREADY_USED", http.StatusConflict, "gate pass already used")
	ErrTokenAlreadyIssued = New("TOKEN_ALREADY_ISSUED", http.StatusConflict, "gate pass already issued")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
