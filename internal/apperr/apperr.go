// Package apperr defines the error kinds reported to terminal clients and
// HTTP callers.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a stable, client-visible error kind.
type Code string

const (
	AuthFailed      Code = "AUTH_FAILED"
	Timeout         Code = "TIMEOUT"
	NetworkError    Code = "NETWORK_ERROR"
	SessionExpired  Code = "SESSION_EXPIRED"
	InvalidRequest  Code = "INVALID_REQUEST"
	SessionLimit    Code = "SESSION_LIMIT"
	CommandFailed   Code = "COMMAND_FAILED"
	SessionNotFound Code = "SESSION_NOT_FOUND"
)

var defaultMessages = map[Code]string{
	AuthFailed:      "Authentication failed",
	Timeout:         "Connection timeout",
	NetworkError:    "Network error",
	SessionExpired:  "Session expired",
	InvalidRequest:  "Invalid request",
	SessionLimit:    "Session limit exceeded",
	CommandFailed:   "Command execution failed",
	SessionNotFound: "Session not found",
}

// DefaultMessage returns the generic description of a code.
func (c Code) DefaultMessage() string {
	if msg, ok := defaultMessages[c]; ok {
		return msg
	}
	return string(c)
}

// Error carries a Code alongside a human-readable message and an optional
// underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error with the given code and message. An empty message
// falls back to the code's default.
func New(code Code, msg string) *Error {
	if msg == "" {
		msg = code.DefaultMessage()
	}
	return &Error{Code: code, Message: msg}
}

// Wrap attaches code to err. The message is taken from err.
func Wrap(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: code.DefaultMessage(), Err: err}
}

// CodeOf returns the code carried by err, and false when err carries none.
func CodeOf(err error) (Code, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code, true
	}
	return "", false
}

// MessageOf returns a client-facing message for err.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Err != nil {
			return ae.Err.Error()
		}
		return ae.Message
	}
	return err.Error()
}
