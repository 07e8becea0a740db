package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSSESource_RecvSkipsHeartbeats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")

		fmt.Fprint(w, "data: {\"type\":\"connection\"}\n\n")
		flusher.Flush()
		fmt.Fprint(w, ":heartbeat\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: {\"type\":\"metric\"}\n\n")
		flusher.Flush()

		<-r.Context().Done()
	}))
	defer server.Close()

	src := NewSSESource(server.URL)
	conn, err := src.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	readType := func() string {
		t.Helper()
		payload, err := conn.Recv()
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatalf("failed to decode payload %q: %v", payload, err)
		}
		return env.Type
	}

	if got := readType(); got != "connection" {
		t.Errorf("expected first payload type connection, got %q", got)
	}
	// The heartbeat comment between the frames never surfaces.
	if got := readType(); got != "metric" {
		t.Errorf("expected second payload type metric, got %q", got)
	}
}

func TestSSESource_MultiLineData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: line1\ndata: line2\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	src := NewSSESource(server.URL)
	conn, err := src.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	payload, err := conn.Recv()
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if string(payload) != "line1\nline2" {
		t.Errorf("expected joined multi-line payload, got %q", payload)
	}
}

func TestSSESource_DialRejectsNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	src := NewSSESource(server.URL)
	if _, err := src.Dial(context.Background()); err == nil {
		t.Fatal("expected dial error for non-200 response, got nil")
	}
}

func TestSSESource_DialFailsWhenServerDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	src := NewSSESource(server.URL)
	if _, err := src.Dial(context.Background()); err == nil {
		t.Fatal("expected dial error for unreachable server, got nil")
	}
}
