package publisher

import (
	"fmt"
	"sync"
)

// State is the lifecycle state of the publisher. Transitions are the
// single source of truth for whether publishing may happen right now.
type State int

const (
	// StateInitializing is the state before the first connect trigger.
	StateInitializing State = iota

	// StateWaitingToBeAvailable means a connection is being established or
	// re-established. Accepted messages are queued.
	StateWaitingToBeAvailable

	// StateAvailable means the channel is fully open, confirmations are
	// enabled, and publishing may proceed.
	StateAvailable

	// StateAvailableButWantsToStop means a graceful shutdown was requested
	// while connected; queued messages are still flushed.
	StateAvailableButWantsToStop

	// StatePermanentlyUnavailable is terminal: drain completed, retries
	// were exhausted, or the publisher was closed.
	StatePermanentlyUnavailable

	// StateForceFinished is terminal: an external force-finish. Any
	// further connection error is fatal, never retried.
	StateForceFinished
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateWaitingToBeAvailable:
		return "waiting-to-be-available"
	case StateAvailable:
		return "available"
	case StateAvailableButWantsToStop:
		return "available-but-wants-to-stop"
	case StatePermanentlyUnavailable:
		return "permanently-unavailable"
	case StateForceFinished:
		return "force-finished"
	default:
		return "unknown"
	}
}

// terminal reports whether no transition leaves this state.
func (s State) terminal() bool {
	return s == StatePermanentlyUnavailable || s == StateForceFinished
}

// lifecycleStateMachine records the publisher's lifecycle state plus
// diagnostic detail flags. Exactly one instance exists per publisher and
// is shared by reference across the collaborating components.
//
// Transitions never fail: an invalid transition is a programming error and
// panics. Transitioning into the state already held is a no-op.
//
// The machine is mutated only from the worker goroutine; the mutex exists
// so the caller side can read the state through a thread-safe accessor.
type lifecycleStateMachine struct {
	mu    sync.RWMutex
	state State

	// Detail flags, diagnostics for terminal states.
	closedByUser         bool
	couldNotConnect      bool
	authenticationFailed bool
}

func newLifecycleStateMachine() *lifecycleStateMachine {
	return &lifecycleStateMachine{state: StateInitializing}
}

// current returns the state.
func (l *lifecycleStateMachine) current() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// is reports whether the machine is in the given state.
func (l *lifecycleStateMachine) is(s State) bool {
	return l.current() == s
}

// isTerminal reports whether the machine is in a terminal state.
func (l *lifecycleStateMachine) isTerminal() bool {
	return l.current().terminal()
}

// transition moves to the target state after validating that the move is
// allowed from the current state. A no-op when already in the target.
func (l *lifecycleStateMachine) transition(to State, allowedFrom ...State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == to {
		return
	}
	for _, from := range allowedFrom {
		if l.state == from {
			l.state = to
			return
		}
	}
	panic(fmt.Sprintf("publisher: invalid lifecycle transition %s -> %s", l.state, to))
}

// toWaitingToBeAvailable enters the (re)connection phase. Allowed on the
// first connect trigger, after losing an established connection, and after
// a channel teardown while a graceful stop is pending.
func (l *lifecycleStateMachine) toWaitingToBeAvailable() {
	l.transition(StateWaitingToBeAvailable,
		StateInitializing, StateAvailable, StateAvailableButWantsToStop)
}

// toAvailable marks the channel fully opened, confirmations enabled, and
// the return callback registered.
func (l *lifecycleStateMachine) toAvailable() {
	l.transition(StateAvailable, StateWaitingToBeAvailable)
}

// toAvailableButWantsToStop records a graceful shutdown request while
// connected.
func (l *lifecycleStateMachine) toAvailableButWantsToStop() {
	l.transition(StateAvailableButWantsToStop, StateAvailable)
}

// toPermanentlyUnavailable is the terminal transition for drain
// completion, exhausted retries, explicit close, and permanent broker
// errors.
func (l *lifecycleStateMachine) toPermanentlyUnavailable() {
	l.transition(StatePermanentlyUnavailable,
		StateInitializing, StateWaitingToBeAvailable, StateAvailable,
		StateAvailableButWantsToStop)
}

// toForceFinished records an external force-finish. Allowed from any
// non-terminal state.
func (l *lifecycleStateMachine) toForceFinished() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.terminal() {
		return
	}
	l.state = StateForceFinished
}

func (l *lifecycleStateMachine) setClosedByUser() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closedByUser = true
}

func (l *lifecycleStateMachine) setCouldNotConnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.couldNotConnect = true
}

func (l *lifecycleStateMachine) setAuthenticationFailed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.authenticationFailed = true
}

func (l *lifecycleStateMachine) wasClosedByUser() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closedByUser
}

func (l *lifecycleStateMachine) hasCouldNotConnect() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.couldNotConnect
}

func (l *lifecycleStateMachine) hasAuthenticationFailed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.authenticationFailed
}
