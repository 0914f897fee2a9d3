package sui

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

const (
	subscribeEventMethod = "suix_subscribeEvent"
	dialTimeout          = 30 * time.Second
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
	// BufferSize is the per-subscription notification buffer.
	BufferSize int

	Logger *slog.Logger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		BufferSize:        1024,
	}
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	log      *slog.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to channel
	subs   map[uint64]chan EventNotification
	subsMu sync.RWMutex

	// activeFilters stores filters for resubscription after reconnect
	activeFilters   map[uint64]EventFilter
	activeFiltersMu sync.RWMutex

	// pendingSubs maps request ID to a subscription awaiting confirmation
	pendingSubs   map[uint64]*pendingSub
	pendingSubsMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	c := &WSClientImpl{
		endpoint:      endpoint,
		config:        cfg,
		log:           log,
		subs:          make(map[uint64]chan EventNotification),
		activeFilters: make(map[uint64]EventFilter),
		pendingSubs:   make(map[uint64]*pendingSub),
		done:          make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *WSClientImpl) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SubscribeEvents subscribes to events matching the filter. The returned channel
// is closed when the client is closed.
func (c *WSClientImpl) SubscribeEvents(ctx context.Context, filter EventFilter) (<-chan EventNotification, error) {
	ch := make(chan EventNotification, c.config.BufferSize)
	if _, err := c.subscribe(ctx, filter, ch, 0); err != nil {
		return nil, err
	}
	return ch, nil
}

// pendingSub is a subscribe request awaiting its confirmation. The read loop
// registers ch under the confirmed subscription ID before it dispatches any
// later message.
type pendingSub struct {
	ch       chan EventNotification
	filter   EventFilter
	replaces uint64 // subscription ID superseded on resubscribe, 0 for a new one
	confirm  chan uint64
}

// subscribe sends the subscribe request and waits until ch is registered
// under the confirmed subscription ID.
func (c *WSClientImpl) subscribe(ctx context.Context, filter EventFilter, ch chan EventNotification, replaces uint64) (uint64, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  subscribeEventMethod,
		Params: []interface{}{
			map[string]string{"MoveEventType": filter.MoveEventType},
		},
	}

	confirmCh := make(chan uint64, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = &pendingSub{
		ch:       ch,
		filter:   filter,
		replaces: replaces,
		confirm:  confirmCh,
	}
	c.pendingSubsMu.Unlock()

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		return c.abandon(reqID, confirmCh, fmt.Errorf("not connected"))
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		return c.abandon(reqID, confirmCh, fmt.Errorf("write subscribe: %w", err))
	}

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()

	select {
	case subID, ok := <-confirmCh:
		if !ok {
			return 0, fmt.Errorf("client closed")
		}
		return subID, nil
	case <-timer.C:
		return c.abandon(reqID, confirmCh, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout))
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	case <-ctx.Done():
		return c.abandon(reqID, confirmCh, ctx.Err())
	}
}

// abandon withdraws a pending request. If the confirmation was already
// handled, the subscription is live and its ID is returned instead of cause.
func (c *WSClientImpl) abandon(reqID uint64, confirm chan uint64, cause error) (uint64, error) {
	c.pendingSubsMu.Lock()
	_, pending := c.pendingSubs[reqID]
	delete(c.pendingSubs, reqID)
	c.pendingSubsMu.Unlock()
	if pending {
		return 0, cause
	}

	select {
	case subID, ok := <-confirm:
		if ok {
			return subID, nil
		}
	default:
	}
	return 0, cause
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.pendingSubsMu.Lock()
	for id, p := range c.pendingSubs {
		close(p.confirm)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	return nil
}

// readLoop reads messages from WebSocket and dispatches to subscribers.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				c.log.Warn("sui ws: connection lost, reconnecting", "error", err)
				go c.reconnect()
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		c.handleMessage(message)
	}
}

// reconnect redials with exponential backoff between ReconnectDelay and
// MaxReconnectDelay until it succeeds or the client is closed, then restores
// every subscription.
func (c *WSClientImpl) reconnect() {
	defer c.reconnecting.Store(false)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.ReconnectDelay
	bo.MaxInterval = c.config.MaxReconnectDelay

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		dialCtx, dialCancel := context.WithTimeout(ctx, dialTimeout)
		defer dialCancel()
		return struct{}{}, c.connect(dialCtx)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Warn("sui ws: reconnect failed", "error", err, "retryIn", next)
		}),
	)
	if err != nil || c.closed.Load() {
		return
	}

	c.log.Info("sui ws: reconnected")
	c.resubscribeAll()
}

// resubscribeAll re-establishes every active subscription on the new connection.
// Each existing channel moves to its new subscription ID once confirmed.
func (c *WSClientImpl) resubscribeAll() {
	c.activeFiltersMu.RLock()
	filters := make(map[uint64]EventFilter, len(c.activeFilters))
	for id, f := range c.activeFilters {
		filters[id] = f
	}
	c.activeFiltersMu.RUnlock()

	for oldSubID, filter := range filters {
		c.subsMu.RLock()
		ch := c.subs[oldSubID]
		c.subsMu.RUnlock()
		if ch == nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := c.subscribe(ctx, filter, ch, oldSubID)
		cancel()
		if err != nil {
			c.log.Warn("sui ws: resubscribe failed", "eventType", filter.MoveEventType, "error", err)
		}
	}
}

// handleMessage processes incoming WebSocket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.log.Debug("sui ws: undecodable message", "error", err)
		return
	}

	switch {
	case env.Error != nil:
		c.log.Warn("sui ws: error response", "code", env.Error.Code, "message", env.Error.Message)
	case env.Method == subscribeEventMethod && env.Params != nil:
		c.handleEventNotification(env.Params)
	case env.ID != 0 && len(env.Result) > 0:
		var subID uint64
		if err := json.Unmarshal(env.Result, &subID); err != nil {
			return
		}
		c.handleSubscribeResponse(env.ID, subID)
	}
}

// handleSubscribeResponse runs on the read loop, so the subscription is
// registered before the next message is dispatched.
func (c *WSClientImpl) handleSubscribeResponse(reqID, subID uint64) {
	c.pendingSubsMu.Lock()
	defer c.pendingSubsMu.Unlock()

	p, ok := c.pendingSubs[reqID]
	if !ok {
		return
	}
	delete(c.pendingSubs, reqID)

	c.subsMu.Lock()
	if p.replaces != 0 {
		delete(c.subs, p.replaces)
	}
	c.subs[subID] = p.ch
	c.subsMu.Unlock()

	c.activeFiltersMu.Lock()
	if p.replaces != 0 {
		delete(c.activeFilters, p.replaces)
	}
	c.activeFilters[subID] = p.filter
	c.activeFiltersMu.Unlock()

	p.confirm <- subID
}

// handleEventNotification dispatches an event to its subscriber. Delivery blocks
// until the subscriber has room or the client is closed.
func (c *WSClientImpl) handleEventNotification(params *wsNotificationParams) {
	c.subsMu.RLock()
	ch, ok := c.subs[params.Subscription]
	c.subsMu.RUnlock()
	if !ok {
		return
	}

	notif := EventNotification{
		SubscriptionID: params.Subscription,
		Event:          params.Result.toEvent(),
	}

	select {
	case ch <- notif:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// A dead connection surfaces as a read error and triggers reconnect.
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsEnvelope struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      uint64                `json:"id,omitempty"`
	Method  string                `json:"method,omitempty"`
	Result  json.RawMessage       `json:"result,omitempty"`
	Error   *RPCError             `json:"error,omitempty"`
	Params  *wsNotificationParams `json:"params,omitempty"`
}

type wsNotificationParams struct {
	Subscription uint64   `json:"subscription"`
	Result       rawEvent `json:"result"`
}

var _ WSClient = (*WSClientImpl)(nil)
