// Package apperr defines the error kinds shared by the claim workflow,
// the notification mailbox and the request API.
//
// NotFound, Conflict, Forbidden and Invalid are deterministic client
// errors and are never retried. Unavailable marks a store timeout or
// transient I/O failure; callers may retry the primary action.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrInvalid     = errors.New("invalid input")
	ErrUnavailable = errors.New("unavailable")

	// ErrTerminalState and ErrInvalidTransition match any TransitionError
	// of their kind, and ErrConflict.
	ErrTerminalState     error = &TransitionError{Terminal: true}
	ErrInvalidTransition error = &TransitionError{}
)

// TransitionError reports a claim status change the state machine does
// not allow. It matches ErrConflict.
type TransitionError struct {
	From     string
	To       string
	Terminal bool
}

func (e *TransitionError) Error() string {
	if e.From == "" {
		if e.Terminal {
			return "claim is in a terminal state"
		}
		return "invalid claim transition"
	}
	if e.Terminal {
		return fmt.Sprintf("claim is %s and can no longer change", e.From)
	}
	return fmt.Sprintf("cannot move claim from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	if target == ErrConflict {
		return true
	}
	t, ok := target.(*TransitionError)
	return ok && t.From == "" && t.Terminal == e.Terminal
}

// NotFound returns an ErrNotFound naming the missing thing.
func NotFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

// Invalid returns an ErrInvalid with a human-readable reason.
func Invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalid, reason)
}

// Forbidden returns an ErrForbidden with a human-readable reason.
func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// Unavailable wraps a store failure so it matches ErrUnavailable while
// keeping the underlying cause inspectable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, errors.Join(ErrUnavailable, err))
}

// Timeout reports whether err was caused by a deadline or cancellation.
func Timeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
