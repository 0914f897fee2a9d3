package stub

import (
	"context"
	"sync"

	"reward-ledger/internal/sui"
)

// RPCClient implements sui.RPCClient for testing.
// Events are returned in insertion order, or reversed when Descending is set.
// Pages continue after the event named by the cursor.
type RPCClient struct {
	mu     sync.Mutex
	Events map[string][]sui.Event // keyed by Move event type
	Err    error                  // returned by every call when set
	Calls  []sui.EventFilter
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Events: make(map[string][]sui.Event),
	}
}

// QueryEvents returns stored events for the filter's event type.
func (c *RPCClient) QueryEvents(_ context.Context, filter sui.EventFilter, opts *sui.QueryOpts) (*sui.EventPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls = append(c.Calls, filter)
	if c.Err != nil {
		return nil, c.Err
	}

	stored := c.Events[filter.MoveEventType]
	events := make([]sui.Event, len(stored))
	copy(events, stored)

	if opts != nil && opts.Descending {
		for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
			events[i], events[j] = events[j], events[i]
		}
	}
	if opts != nil && opts.Cursor != nil {
		for i, e := range events {
			if e.ID == *opts.Cursor {
				events = events[i+1:]
				break
			}
		}
	}

	page := &sui.EventPage{Data: events}
	if opts != nil && opts.Limit > 0 && opts.Limit < len(events) {
		page.Data = events[:opts.Limit]
		page.HasNextPage = true
		next := page.Data[len(page.Data)-1].ID
		page.NextCursor = &next
	}
	return page, nil
}

// AddEvent appends an event under its type.
func (c *RPCClient) AddEvent(e sui.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Events[e.Type] = append(c.Events[e.Type], e)
}

// SetError makes every subsequent call fail with err (nil clears it).
func (c *RPCClient) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Err = err
}

var _ sui.RPCClient = (*RPCClient)(nil)
