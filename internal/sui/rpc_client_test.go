package sui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPClient_QueryEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		if req.Method != "suix_queryEvents" {
			t.Errorf("expected method suix_queryEvents, got %s", req.Method)
		}
		if len(req.Params) != 4 {
			t.Errorf("expected 4 params, got %d", len(req.Params))
			return
		}
		query, ok := req.Params[0].(map[string]interface{})
		if !ok || query["MoveEventType"] != "0xabc::core::EContributed" {
			t.Errorf("unexpected query param: %v", req.Params[0])
		}
		if req.Params[2] != float64(50) {
			t.Errorf("expected limit 50, got %v", req.Params[2])
		}
		if req.Params[3] != true {
			t.Errorf("expected descending=true, got %v", req.Params[3])
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"data": []interface{}{
					map[string]interface{}{
						"id":                map[string]interface{}{"txDigest": "digest1", "eventSeq": "0"},
						"packageId":         "0xabc",
						"transactionModule": "core",
						"sender":            "0xsender",
						"type":              "0xabc::core::EContributed",
						"parsedJson":        map[string]interface{}{"contributor": "0xalice"},
						"timestampMs":       "1700000000000",
					},
				},
				"nextCursor":  map[string]interface{}{"txDigest": "digest1", "eventSeq": "0"},
				"hasNextPage": true,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	defer client.Close()

	page, err := client.QueryEvents(context.Background(),
		EventFilter{MoveEventType: EventTypeTag("0xabc", "core", "EContributed")},
		&QueryOpts{Limit: 50, Descending: true})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}

	if len(page.Data) != 1 {
		t.Fatalf("expected 1 event, got %d", len(page.Data))
	}
	ev := page.Data[0]
	if ev.ID.TxDigest != "digest1" {
		t.Errorf("expected txDigest digest1, got %s", ev.ID.TxDigest)
	}
	if ev.TimestampMs != 1700000000000 {
		t.Errorf("expected timestampMs 1700000000000, got %d", ev.TimestampMs)
	}
	if string(ev.ParsedJSON) != `{"contributor":"0xalice"}` {
		t.Errorf("unexpected parsedJson %s", ev.ParsedJSON)
	}
	if !page.HasNextPage || page.NextCursor == nil {
		t.Error("expected next page cursor")
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32602,
				"message": "Invalid params",
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.QueryEvents(context.Background(), EventFilter{MoveEventType: "x"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %T", err)
	}
	if rpcErr.Code != -32602 {
		t.Errorf("expected code -32602, got %d", rpcErr.Code)
	}
}

func TestHTTPClient_NoRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.QueryEvents(context.Background(), EventFilter{MoveEventType: "x"}, nil)
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls.Load())
	}
}

func TestHTTPClient_LatencyObserver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"data": []interface{}{}, "hasNextPage": false},
		})
	}))
	defer server.Close()

	var observed string
	client := NewHTTPClient(server.URL, WithLatencyObserver(func(method string, _ time.Duration, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		observed = method
	}))

	page, err := client.QueryEvents(context.Background(), EventFilter{MoveEventType: "x"}, nil)
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(page.Data) != 0 {
		t.Errorf("expected empty page, got %d events", len(page.Data))
	}
	if observed != "suix_queryEvents" {
		t.Errorf("expected observed method suix_queryEvents, got %q", observed)
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.QueryEvents(ctx, EventFilter{MoveEventType: "x"}, nil)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestU64_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    U64
		wantErr bool
	}{
		{name: "string", input: `"18446744073709551615"`, want: 18446744073709551615},
		{name: "number", input: `42`, want: 42},
		{name: "null", input: `null`, want: 0},
		{name: "negative", input: `-1`, wantErr: true},
		{name: "garbage", input: `"abc"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got U64
			err := json.Unmarshal([]byte(tt.input), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
