// Package domainerrors defines coded errors that services return and the HTTP
// boundary translates into status codes and machine-readable error_code values.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error category exposed to API clients.
type Code string

const (
	CodeBotDetected     Code = "BOT_DETECTED"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeCaptchaRequired Code = "CAPTCHA_REQUIRED"
	CodeExpired         Code = "EXPIRED"
	CodeExhausted       Code = "EXHAUSTED"
	CodeNotFound        Code = "NOT_FOUND"
	CodeAlreadySolved   Code = "ALREADY_SOLVED"
	CodeInvalidRequest  Code = "INVALID_REQUEST"
	CodeConflict        Code = "CONFLICT"
	CodeForbidden       Code = "FORBIDDEN"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeDeliveryFailed  Code = "DELIVERY_FAILED"
	CodeInternal        Code = "INTERNAL"
)

// Error carries a code, a client-safe message and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error with the given code.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the first domain error in the chain, or
// CodeInternal for anything else.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message of a domain error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
