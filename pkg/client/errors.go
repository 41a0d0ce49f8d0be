package client

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationRequired is returned when an operation needs a valid
	// credential and none is present. Never retried automatically.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrSessionTerminal is returned when sending into a resolved or closed
	// session.
	ErrSessionTerminal = errors.New("session no longer accepts messages")

	// ErrNoSession is returned when an operation requires an established
	// session and none exists.
	ErrNoSession = errors.New("no active session")

	// ErrSessionInProgress is returned by Start when a session is already
	// established; callers must Leave first.
	ErrSessionInProgress = errors.New("a session is already in progress")
)

// SendError reports a failed optimistic send. The optimistic message has
// already been rolled back from the store; Content carries the original
// input so the caller can restore it.
type SendError struct {
	Content string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
