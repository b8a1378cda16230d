// Package session supervises the single logical connection to the
// assistant service: connect, bounded retry, automatic reconnect after a
// drop, and user-forced reset.
package session

import (
	"errors"

	"github.com/alanmeadows/catcode/internal/catclient"
)

var (
	// ErrConnectionFailed means the retry budget is exhausted. The session
	// stays Failed until Reset.
	ErrConnectionFailed = errors.New("connection failed")
	// ErrSessionFailed is returned by Connect while the session is Failed.
	ErrSessionFailed = errors.New("session failed, reset required")
	// ErrNotConnected is returned by Send outside the Connected state.
	ErrNotConnected = errors.New("not connected to assistant")
)

// State is a session state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventKind identifies a supervisor event.
type EventKind int

const (
	// EventStateChanged is raised on every state transition.
	EventStateChanged EventKind = iota
	EventConnected
	// EventDisconnected is raised when a live connection drops.
	EventDisconnected
	// EventTransportError reports a failed attempt that will be retried, or
	// a non-fatal transport problem.
	EventTransportError
	// EventFailed is raised when the retry budget is exhausted.
	EventFailed
	// EventReset is raised by Reset after teardown and before reconnecting.
	EventReset
	// EventMessage forwards a reply frame from the transport.
	EventMessage
)

// Event is delivered to every Listener.
type Event struct {
	Kind EventKind
	// From and To are set for EventStateChanged.
	From, To State
	// Err is set for EventTransportError and EventFailed.
	Err error
	// Reason describes EventDisconnected and EventReset.
	Reason string
	// Message is set for EventMessage.
	Message catclient.Event
}

// Listener receives supervisor events. Listeners run synchronously on the
// goroutine that raised the event and must not call Connect or Reset.
type Listener func(Event)

// Status is a point-in-time view of the session.
type Status struct {
	State      State
	RetryCount int
	MaxRetries int
	LastError  error
}
