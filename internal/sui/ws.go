package sui

import "context"

// WSClient defines the Sui WebSocket subscription interface.
type WSClient interface {
	// SubscribeEvents subscribes to events matching the filter.
	SubscribeEvents(ctx context.Context, filter EventFilter) (<-chan EventNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}
