package room

import (
	"errors"
	"fmt"
)

var (
	ErrMediaUnavailable = errors.New("camera or microphone unavailable")
	ErrNoPeerConnection = errors.New("no active peer connection")
	ErrCallInProgress   = errors.New("call already in progress")
	ErrSetupInFlight    = errors.New("call setup already in flight")
	ErrMissingPayload   = errors.New("signaling payload missing")
	ErrNotSent          = errors.New("room channel not open")
)

// Error records which call operation failed.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
