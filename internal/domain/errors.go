package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorNotFound       ErrorCode = "NOT_FOUND"
	ErrorConfiguration  ErrorCode = "CONFIGURATION"
	ErrorTransient      ErrorCode = "TRANSIENT"
	ErrorAuthentication ErrorCode = "AUTHENTICATION"
	ErrorUpstream       ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal       ErrorCode = "INTERNAL_ERROR"
)

// Error is the typed error shared across the provisioning and identity paths.
// Code drives caller control flow; Reason is a stable machine-readable tag.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("%s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

func NotFound(reason string, err error) *Error {
	return NewError(ErrorNotFound, reason, err)
}

func ConfigError(reason string, err error) *Error {
	return NewError(ErrorConfiguration, reason, err)
}

func AuthError(reason string, err error) *Error {
	return NewError(ErrorAuthentication, reason, err)
}

func hasCode(err error, code ErrorCode) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}

// IsNotFound reports whether err is a recoverable absence: callers skip the
// step or fall back to a default rather than aborting.
func IsNotFound(err error) bool { return hasCode(err, ErrorNotFound) }

func IsConfiguration(err error) bool { return hasCode(err, ErrorConfiguration) }

func IsAuthentication(err error) bool { return hasCode(err, ErrorAuthentication) }
