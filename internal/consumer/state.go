// Package consumer drains stream logs: GroupReader competes with other
// consumers in a group and acknowledges what it handled, TailReader follows a
// log on its own with a cursor.
package consumer

// State is a reader's position in its poll loop
type State int32

const (
	// StateIdle is about to poll
	StateIdle State = iota
	// StatePolling has a broker read in flight
	StatePolling
	// StateDispatching is handing entries to the handler
	StateDispatching
	// StateStopped is terminal
	StateStopped
)

// String returns the lower-case state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateDispatching:
		return "dispatching"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats counts what a reader did
type Stats struct {
	Delivered       int64
	Acked           int64
	HandlerFailures int64
	AckFailures     int64
	NotPending      int64
}
