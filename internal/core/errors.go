package core

import (
	"errors"
	"fmt"
)

// Code classifies a service failure. The values double as the status strings
// of the callable error envelope.
type Code string

const (
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodePermissionDenied   Code = "PERMISSION_DENIED"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeInternal           Code = "INTERNAL"
)

// Error is the typed failure returned by every service operation.
// Message is safe to show to callers; the cause is only for server-side logs.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, cause: cause}
}

func InvalidArgument(msg string) *Error    { return newError(CodeInvalidArgument, msg, nil) }
func Unauthenticated(msg string) *Error    { return newError(CodeUnauthenticated, msg, nil) }
func PermissionDenied(msg string) *Error   { return newError(CodePermissionDenied, msg, nil) }
func NotFound(msg string) *Error           { return newError(CodeNotFound, msg, nil) }
func AlreadyExists(msg string) *Error      { return newError(CodeAlreadyExists, msg, nil) }
func FailedPrecondition(msg string) *Error { return newError(CodeFailedPrecondition, msg, nil) }

// Internal wraps a downstream failure behind a generic message.
func Internal(msg string, cause error) *Error { return newError(CodeInternal, msg, cause) }

// CodeOf returns the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the caller-facing message of err. Untyped errors never leak
// their text.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error"
}
