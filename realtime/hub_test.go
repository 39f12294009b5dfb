package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d clients, have %d", n, h.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastScopedByMap(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	all := dial(t, srv, "")
	mapOne := dial(t, srv, "?map_id=1")
	waitForClients(t, hub, 2)

	two := uint(2)
	hub.Broadcast(Event{Type: EventPinCreated, PinID: 7, MapID: &two})
	one := uint(1)
	hub.Broadcast(Event{Type: EventPinDeleted, PinID: 8, MapID: &one})

	got := readEvent(t, all)
	if got.Type != EventPinCreated || got.PinID != 7 {
		t.Errorf("unscoped client first event = %+v", got)
	}
	got = readEvent(t, all)
	if got.Type != EventPinDeleted || got.PinID != 8 {
		t.Errorf("unscoped client second event = %+v", got)
	}

	got = readEvent(t, mapOne)
	if got.PinID != 8 || got.Timestamp == 0 {
		t.Errorf("map 1 client should only see pin 8 with a timestamp, got %+v", got)
	}
}

func TestServeWSRejectsBadMapID(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?map_id=abc"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("response = %v, want 400", resp)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return ev
}
