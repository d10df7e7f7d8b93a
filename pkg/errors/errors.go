package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
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

// Is matches errors sharing the same code so cloned values still compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
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

// FieldError is the details payload for validation failures.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// TransitionError is the details payload for rejected status changes.
type TransitionError struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Predefined errors for common scenarios.
var (
	ErrNotFound            = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden           = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized        = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict            = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation          = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal            = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrTooManyRequests     = New("TOO_MANY_REQUESTS", http.StatusTooManyRequests, "too many requests")
	ErrMissingField        = New("MISSING_FIELD", http.StatusBadRequest, "required field missing")
	ErrInvalidFormat       = New("INVALID_FORMAT", http.StatusBadRequest, "invalid field format")
	ErrDuplicateSubmission = New("DUPLICATE_SUBMISSION", http.StatusConflict, "an application with this email already exists")
	ErrIllegalTransition   = New("ILLEGAL_TRANSITION", http.StatusUnprocessableEntity, "status transition not allowed")
	ErrStoreConflict       = New("STORE_CONFLICT", http.StatusConflict, "application was modified concurrently, retry the request")
	ErrDispatchFailure     = New("DISPATCH_FAILURE", http.StatusInternalServerError, "notification dispatch failed")
	ErrCacheMiss           = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// MissingField reports an absent or blank required field.
func MissingField(field string) *Error {
	e := Clone(ErrMissingField, fmt.Sprintf("%s is required", field))
	e.Details = FieldError{Field: field, Reason: "missing"}
	return e
}

// InvalidFormat reports a present field whose value is malformed.
func InvalidFormat(field, reason string) *Error {
	if reason == "" {
		reason = "invalid format"
	}
	e := Clone(ErrInvalidFormat, fmt.Sprintf("%s: %s", field, reason))
	e.Details = FieldError{Field: field, Reason: reason}
	return e
}

// IllegalTransition reports a status change outside the allowed edge set.
func IllegalTransition(from, to string) *Error {
	e := Clone(ErrIllegalTransition, fmt.Sprintf("cannot move application from %s to %s", from, to))
	e.Details = TransitionError{From: from, To: to}
	return e
}

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
