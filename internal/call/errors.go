package call

import (
	"errors"
	"fmt"
)

var (
	ErrDevice       = errors.New("media device unavailable")
	ErrSignaling    = errors.New("signaling error")
	ErrNegotiation  = errors.New("negotiation failed")
	ErrClosed       = errors.New("session closed")
	ErrInvalidState = errors.New("operation not valid in current state")
)

// Error annotates a session failure or diagnostic with the step that
// produced it. Kind is one of the sentinel errors above.
type Error struct {
	Op      string
	Kind    error
	Err     error
	Details string
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Details != "" {
		msg += fmt.Sprintf(" (%s)", e.Details)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func rejected(op, details string) *Error {
	return &Error{Op: op, Kind: ErrSignaling, Details: details}
}
