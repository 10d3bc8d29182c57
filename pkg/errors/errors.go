package errors

import (
	"errors"
	"fmt"
)

// Error represents a typed client error. Status carries the HTTP status for
// server-originated errors and is zero for failures raised locally.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
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

// Is reports whether target carries the same code, so clones and wrapped
// copies still match the predefined values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
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

// Predefined errors for the client taxonomy.
var (
	ErrInvalidURL = New("INVALID_URL", 0, "invalid url")
	ErrTransport  = New("TRANSPORT_ERROR", 0, "transport error")
	ErrServer     = New("SERVER_ERROR", 0, "server error")
	ErrValidation = New("VALIDATION_ERROR", 0, "validation failed")
	ErrDecoding   = New("DECODING_ERROR", 0, "failed to decode response")
	ErrNoData     = New("NO_DATA", 0, "response body is empty")
	ErrStorage    = New("STORAGE_ERROR", 0, "secret store failure")
	ErrUnknown    = New("UNKNOWN_ERROR", 0, "unknown error")
)

// Validation builds a client-side precondition failure.
func Validation(message string) *Error {
	return Clone(ErrValidation, message)
}

// Server builds a server error for the given HTTP status.
func Server(status int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("status %d", status)
	}
	return &Error{Code: ErrServer.Code, Status: status, Message: message}
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
	return Wrap(err, ErrUnknown.Code, ErrUnknown.Status, ErrUnknown.Message)
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
