package refresh

import (
	"errors"
	"time"
)

// ErrCancelled is returned by operations on a cancelled subscription.
var ErrCancelled = errors.New("refresh: subscription cancelled")

// State is the lifecycle state of a subscription.
type State int

const (
	StateIdle     State = iota // no cycle has completed yet
	StateFetching              // at least one cycle is in flight
	StateReady                 // last completed cycle succeeded
	StateFailed                // last completed cycle failed
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of a subscription.
type Status struct {
	State         State
	LastSuccess   time.Time // zero until the first successful cycle
	LastError     error     // error of the most recent failed cycle
	Cycles        int       // completed cycles, successful or not
	Failures      int
	SkippedEvents int // malformed events dropped by the most recent successful cycle
}
