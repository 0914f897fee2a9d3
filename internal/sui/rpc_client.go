package sui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout = 30 * time.Second

	// TestnetEndpoint is the public Sui testnet fullnode.
	TestnetEndpoint = "https://fullnode.testnet.sui.io:443"
)

// LatencyObserver receives the duration of every JSON-RPC round trip.
type LatencyObserver func(method string, d time.Duration, err error)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
// A single client is meant to be constructed once and shared; Close releases
// idle connections on shutdown.
type HTTPClient struct {
	endpoint  string
	client    *http.Client
	observe   LatencyObserver
	requestID atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithLatencyObserver registers a callback for per-call latency.
func WithLatencyObserver(fn LatencyObserver) ClientOption {
	return func(c *HTTPClient) {
		c.observe = fn
	}
}

// NewHTTPClient creates a new Sui RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases idle keep-alive connections held by the client.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a single JSON-RPC call. Retries are left to the caller.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) (err error) {
	if c.observe != nil {
		start := time.Now()
		defer func() { c.observe(method, time.Since(start), err) }()
	}

	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return nil
}

// QueryEvents retrieves one page of events matching filter.
func (c *HTTPClient) QueryEvents(ctx context.Context, filter EventFilter, opts *QueryOpts) (*EventPage, error) {
	query := map[string]interface{}{
		"MoveEventType": filter.MoveEventType,
	}

	var (
		cursor     interface{}
		limit      interface{}
		descending bool
	)
	if opts != nil {
		if opts.Cursor != nil {
			cursor = opts.Cursor
		}
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		descending = opts.Descending
	}

	params := []interface{}{query, cursor, limit, descending}

	var result queryEventsResult
	if err := c.call(ctx, "suix_queryEvents", params, &result); err != nil {
		return nil, err
	}

	page := &EventPage{
		Data:        make([]Event, len(result.Data)),
		NextCursor:  result.NextCursor,
		HasNextPage: result.HasNextPage,
	}
	for i, e := range result.Data {
		page.Data[i] = e.toEvent()
	}

	return page, nil
}

// queryEventsResult is the raw RPC response for suix_queryEvents.
type queryEventsResult struct {
	Data        []rawEvent `json:"data"`
	NextCursor  *EventID   `json:"nextCursor"`
	HasNextPage bool       `json:"hasNextPage"`
}

// rawEvent is the wire shape of an event, shared with subscription notifications.
type rawEvent struct {
	ID                EventID         `json:"id"`
	PackageID         string          `json:"packageId"`
	TransactionModule string          `json:"transactionModule"`
	Sender            string          `json:"sender"`
	Type              string          `json:"type"`
	ParsedJSON        json.RawMessage `json:"parsedJson"`
	TimestampMs       *U64            `json:"timestampMs"`
}

func (e rawEvent) toEvent() Event {
	ev := Event{
		ID:                e.ID,
		PackageID:         e.PackageID,
		TransactionModule: e.TransactionModule,
		Sender:            e.Sender,
		Type:              e.Type,
		ParsedJSON:        e.ParsedJSON,
	}
	if e.TimestampMs != nil {
		ev.TimestampMs = int64(*e.TimestampMs)
	}
	return ev
}

var _ RPCClient = (*HTTPClient)(nil)
