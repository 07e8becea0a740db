package consumer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestWSSource_DialAndRecv(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connection"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"metric"}`))

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	src := NewWSSource(wsURL)

	conn, err := src.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	first, err := conn.Recv()
	if err != nil {
		t.Fatalf("first Recv failed: %v", err)
	}
	if !strings.Contains(string(first), "connection") {
		t.Errorf("unexpected first payload: %q", first)
	}

	second, err := conn.Recv()
	if err != nil {
		t.Fatalf("second Recv failed: %v", err)
	}
	if !strings.Contains(string(second), "metric") {
		t.Errorf("unexpected second payload: %q", second)
	}
}

func TestWSSource_RecvFaultsOnServerClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	src := NewWSSource(wsURL)

	conn, err := src.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		_, err := conn.Recv()
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected Recv error after server close, got nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not fault after server close")
	}
}

func TestWSSource_DialFailsWhenServerDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	server.Close()

	src := NewWSSource(wsURL)
	if _, err := src.Dial(context.Background()); err == nil {
		t.Fatal("expected dial error for unreachable server, got nil")
	}
}
