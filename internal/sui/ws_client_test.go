package sui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestWSClient_Connect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	client, err := NewWSClient(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	if client.closed.Load() {
		t.Error("client should not be closed")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	// Second close is a no-op.
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestWSClient_SubscribeEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		if req.Method != "suix_subscribeEvent" {
			t.Errorf("expected suix_subscribeEvent, got %s", req.Method)
		}

		if err := c.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  777,
		}); err != nil {
			t.Errorf("write response: %v", err)
			return
		}

		time.Sleep(50 * time.Millisecond)
		notif := map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "suix_subscribeEvent",
			"params": map[string]interface{}{
				"subscription": 777,
				"result": map[string]interface{}{
					"id":          map[string]interface{}{"txDigest": "d1", "eventSeq": "3"},
					"type":        "0xabc::core::EUsageRecorded",
					"parsedJson":  map[string]interface{}{"tokens": "1000"},
					"timestampMs": "1700000000000",
				},
			},
		}
		if err := c.WriteJSON(notif); err != nil {
			t.Errorf("write notification: %v", err)
			return
		}

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeEvents(ctx, EventFilter{MoveEventType: "0xabc::core::EUsageRecorded"})
	if err != nil {
		t.Fatalf("SubscribeEvents: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.SubscriptionID != 777 {
			t.Errorf("expected subscription 777, got %d", notif.SubscriptionID)
		}
		if notif.Event.ID.TxDigest != "d1" {
			t.Errorf("expected txDigest d1, got %s", notif.Event.ID.TxDigest)
		}
		if notif.Event.TimestampMs != 1700000000000 {
			t.Errorf("unexpected timestampMs %d", notif.Event.TimestampMs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSClient_SubscribeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		// Never confirm the subscription.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	cfg := DefaultWSConfig()
	cfg.SubscribeTimeout = 100 * time.Millisecond

	client, err := NewWSClient(context.Background(), wsURL, &cfg)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	_, err = client.SubscribeEvents(context.Background(), EventFilter{MoveEventType: "x"})
	if err == nil {
		t.Fatal("expected subscription timeout")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("expected timeout error, got %v", err)
	}
}

func TestWSClient_SubscribeAfterClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	client, err := NewWSClient(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	client.Close()

	if _, err := client.SubscribeEvents(context.Background(), EventFilter{MoveEventType: "x"}); err == nil {
		t.Error("expected error after close")
	}
}

func TestWSClient_ReconnectResubscribes(t *testing.T) {
	var conns atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		n := conns.Add(1)

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		subID := 100 + int(n)
		if err := c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": subID}); err != nil {
			return
		}

		if n == 1 {
			// Drop the first connection shortly after confirming.
			time.Sleep(50 * time.Millisecond)
			return
		}

		if err := c.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "suix_subscribeEvent",
			"params": map[string]interface{}{
				"subscription": subID,
				"result": map[string]interface{}{
					"id":   map[string]interface{}{"txDigest": "after-reconnect", "eventSeq": "0"},
					"type": "0xabc::core::EContributed",
				},
			},
		}); err != nil {
			return
		}
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	cfg := DefaultWSConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 50 * time.Millisecond
	cfg.SubscribeTimeout = time.Second

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, &cfg)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeEvents(ctx, EventFilter{MoveEventType: "0xabc::core::EContributed"})
	if err != nil {
		t.Fatalf("SubscribeEvents: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.SubscriptionID != 102 {
			t.Errorf("expected resubscribed id 102, got %d", notif.SubscriptionID)
		}
		if notif.Event.ID.TxDigest != "after-reconnect" {
			t.Errorf("unexpected event %+v", notif.Event.ID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for notification after reconnect")
	}

	if got := conns.Load(); got < 2 {
		t.Errorf("expected a second connection, got %d", got)
	}
}

func TestWSClient_NotificationRightAfterConfirmation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}

		// Confirmation and first event back to back, as a busy node sends them.
		if err := c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 5}); err != nil {
			return
		}
		if err := c.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "suix_subscribeEvent",
			"params": map[string]interface{}{
				"subscription": 5,
				"result": map[string]interface{}{
					"id":   map[string]interface{}{"txDigest": "first", "eventSeq": "0"},
					"type": "0xabc::core::EContributed",
				},
			},
		}); err != nil {
			return
		}
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	for i := 0; i < 20; i++ {
		client, err := NewWSClient(context.Background(), wsURL, nil)
		if err != nil {
			t.Fatalf("NewWSClient: %v", err)
		}

		ch, err := client.SubscribeEvents(context.Background(), EventFilter{MoveEventType: "0xabc::core::EContributed"})
		if err != nil {
			client.Close()
			t.Fatalf("SubscribeEvents: %v", err)
		}

		select {
		case notif := <-ch:
			if notif.Event.ID.TxDigest != "first" {
				t.Errorf("unexpected event %+v", notif.Event.ID)
			}
		case <-time.After(2 * time.Second):
			client.Close()
			t.Fatalf("iteration %d: notification sent right after confirmation was lost", i)
		}
		client.Close()
	}
}
