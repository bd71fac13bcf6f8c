// Package domainerrors provides code-carrying errors for domain logic.
//
// Services return these so transports can translate failures without string
// matching, and so callers can branch on the class of failure:
//
//	if dErrors.HasCode(err, dErrors.CodeConflict) { re-read and retry }
//
// Infrastructure facts (record missing in a store, key already taken) are
// expressed with pkg/platform/sentinel and wrapped into domain errors at the
// service boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation marks malformed or out-of-range input fields.
	CodeValidation Code = "validation"
	// CodeInvalidInput marks inputs that fail parsing at trust boundaries.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks requests that cannot be decoded at all.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks references to entities that do not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks optimistic concurrency failures (stale version).
	CodeConflict Code = "conflict"
	// CodeForeignKey marks unresolvable person/device references.
	CodeForeignKey Code = "foreign_key_violation"
	// CodeInvariantViolation marks illegal state transitions.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeUnauthorized marks missing or invalid credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeUnavailable marks transient storage failures; callers may retry
	// with backoff.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks unexpected failures; details are not surfaced.
	CodeInternal Code = "internal_error"
)

// Error is a domain error with a classification code. The wrapped cause, if
// any, is preserved for errors.Is / errors.As chains.
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

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
// A nil cause returns nil so call sites can wrap unconditionally.
func Wrap(cause error, code Code, message string) error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: cause}
}

// HasCode reports whether err or any error in its chain carries the code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	for errors.As(err, &domainErr) {
		if domainErr.Code == code {
			return true
		}
		err = domainErr.cause
		domainErr = nil
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal when err
// carries none.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}
