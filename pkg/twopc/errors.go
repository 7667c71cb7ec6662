package twopc

import (
	"errors"
	"fmt"
)

// Code classifies a transfer failure the way the wire protocol reports it.
type Code string

const (
	// CodeInvalidArgument marks a malformed request: missing fields, a
	// negative amount, identical debit/credit accounts.
	CodeInvalidArgument Code = "invalid_argument"
	// CodeNotFound marks a reference to an account or transaction that
	// does not exist.
	CodeNotFound Code = "not_found"
	// CodeInsufficientFunds marks a debit that would take an account
	// negative.
	CodeInsufficientFunds Code = "insufficient_funds"
	// CodeConflict marks contention on an account lock that the caller
	// should retry.
	CodeConflict Code = "conflict"
	// CodeTransport marks a network/timeout failure talking to a
	// participant.
	CodeTransport Code = "transport"
	// CodeCritical marks a transfer possibly left in an inconsistent state
	// because a commit call failed after the commit decision — see
	// pkg/diagnostics.
	CodeCritical Code = "critical"
)

// Error is the taxonomy-tagged error every coordinator and participant
// operation returns on failure.
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

// NewError builds an Error of the given code.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an Error of the given code wrapping a lower-level cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the Code from err if it is (or wraps) a *Error, otherwise
// returns "" with ok=false.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
