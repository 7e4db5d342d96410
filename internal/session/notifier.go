// Package session tracks the lifecycle of a messaging platform connection
// and persists metadata about the last successful authentication.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type State int

const (
	StateNotReady State = iota
	StateQRNeeded
	StateAuthenticated
	StateReady
	StateAuthFailed
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateNotReady:
		return "not_ready"
	case StateQRNeeded:
		return "qr_needed"
	case StateAuthenticated:
		return "authenticated"
	case StateReady:
		return "ready"
	case StateAuthFailed:
		return "auth_failed"
	case StateDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrAuthFailed   = errors.New("authentication failed")
	ErrReadyTimeout = errors.New("timed out waiting for client to become ready")
)

// InitializationError is returned when the platform client cannot start.
type InitializationError struct {
	Platform string
	Err      error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize %s client: %v", e.Platform, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// Notifier is a small state holder that platform event handlers publish
// into and the entry point waits on. Safe for concurrent use.
type Notifier struct {
	mu      sync.Mutex
	state   State
	reason  string
	changed chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{changed: make(chan struct{})}
}

func (n *Notifier) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Reason returns the detail attached to the last failure or disconnect.
func (n *Notifier) Reason() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reason
}

func (n *Notifier) set(s State, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	// a stored session reports authenticated after ready; keep ready
	if s == StateAuthenticated && n.state == StateReady {
		return
	}
	if n.state == s && n.reason == reason {
		return
	}
	n.state = s
	n.reason = reason
	close(n.changed)
	n.changed = make(chan struct{})
}

func (n *Notifier) MarkQRNeeded() { n.set(StateQRNeeded, "") }

func (n *Notifier) MarkAuthenticated() { n.set(StateAuthenticated, "") }

func (n *Notifier) MarkReady() { n.set(StateReady, "") }

func (n *Notifier) MarkAuthFailed(reason string) { n.set(StateAuthFailed, reason) }

func (n *Notifier) MarkDisconnected(reason string) { n.set(StateDisconnected, reason) }

// WaitReady blocks until the client is ready, authentication fails, the
// timeout elapses or ctx is done. A zero timeout waits on ctx alone.
// Disconnects do not end the wait: pairing reconnects on its own.
func (n *Notifier) WaitReady(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, ErrReadyTimeout)
		defer cancel()
	}
	for {
		n.mu.Lock()
		state, reason, changed := n.state, n.reason, n.changed
		n.mu.Unlock()

		switch state {
		case StateReady:
			return nil
		case StateAuthFailed:
			if reason != "" {
				return fmt.Errorf("%w: %s", ErrAuthFailed, reason)
			}
			return ErrAuthFailed
		}

		select {
		case <-ctx.Done():
			if cause := context.Cause(ctx); errors.Is(cause, ErrReadyTimeout) {
				return fmt.Errorf("%w after %s (last state %s)", ErrReadyTimeout, timeout, state)
			}
			return ctx.Err()
		case <-changed:
		}
	}
}
