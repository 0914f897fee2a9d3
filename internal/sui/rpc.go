package sui

import "context"

// RPCClient defines the Sui JSON-RPC surface the engine depends on.
type RPCClient interface {
	// QueryEvents returns one page of events matching the filter.
	QueryEvents(ctx context.Context, filter EventFilter, opts *QueryOpts) (*EventPage, error)
}

// EventFilter selects events by Move event type tag, e.g. "0xabc::core::EContributed".
type EventFilter struct {
	MoveEventType string
}

// QueryOpts defines optional pagination parameters for QueryEvents.
type QueryOpts struct {
	Cursor     *EventID // Resume after this event
	Limit      int      // Maximum number of events to return
	Descending bool     // Newest first
}
