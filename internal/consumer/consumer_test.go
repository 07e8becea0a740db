package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"metrics-feed/internal/domain"
	"metrics-feed/internal/stream"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// fakeConn delivers pushed payloads and faults when closed.
type fakeConn struct {
	payloads chan []byte
	closed   chan struct{}
	once     sync.Once
}

func newFakeConn(buffer int) *fakeConn {
	return &fakeConn{
		payloads: make(chan []byte, buffer),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) push(payload []byte) {
	c.payloads <- payload
}

func (c *fakeConn) Recv() ([]byte, error) {
	select {
	case p := <-c.payloads:
		return p, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// fakeSource hands out scripted connections and counts dial attempts.
type fakeSource struct {
	mu    sync.Mutex
	dials int
	dial  func(call int) (Conn, error)
}

func (s *fakeSource) Dial(ctx context.Context) (Conn, error) {
	s.mu.Lock()
	s.dials++
	call := s.dials
	dial := s.dial
	s.mu.Unlock()
	return dial(call)
}

func (s *fakeSource) dialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func metricPayload(t *testing.T, id string, revenue float64) []byte {
	t.Helper()
	msg := domain.NewMetricMessage(domain.MetricPoint{
		ID:             id,
		Timestamp:      time.Now(),
		Revenue:        revenue,
		ActiveUsers:    1,
		EngagementRate: 50,
	}, time.Now())

	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal metric message: %v", err)
	}
	return payload
}

func TestReconnectDelay(t *testing.T) {
	base := 3000 * time.Millisecond
	want := []time.Duration{
		3000 * time.Millisecond,
		6000 * time.Millisecond,
		12000 * time.Millisecond,
		24000 * time.Millisecond,
		48000 * time.Millisecond,
	}

	for retry, expected := range want {
		if got := ReconnectDelay(base, retry); got != expected {
			t.Errorf("retry %d: expected delay %v, got %v", retry, expected, got)
		}
	}
}

func TestConsumer_WindowCappedAt50(t *testing.T) {
	conn := newFakeConn(64)
	src := &fakeSource{dial: func(int) (Conn, error) { return conn, nil }}
	c := New(src, Config{Logger: quietLogger()})

	c.Connect(context.Background())
	defer c.Disconnect()

	for i := 1; i <= 55; i++ {
		conn.push(metricPayload(t, fmt.Sprintf("p%d", i), float64(i)))
	}

	waitFor(t, 2*time.Second, func() bool {
		w := c.Window()
		return len(w) == 50 && w[len(w)-1].ID == "p55"
	})

	window := c.Window()
	if window[0].ID != "p6" {
		t.Errorf("expected oldest retained point p6, got %q", window[0].ID)
	}
	if window[49].ID != "p55" {
		t.Errorf("expected newest point p55, got %q", window[49].ID)
	}
}

func TestConsumer_MalformedMessagesDropped(t *testing.T) {
	conn := newFakeConn(8)
	src := &fakeSource{dial: func(int) (Conn, error) { return conn, nil }}
	c := New(src, Config{Logger: quietLogger()})

	c.Connect(context.Background())
	defer c.Disconnect()

	conn.push([]byte("{not json"))
	conn.push([]byte(`{"type":"bogus","timestamp":1}`))
	conn.push([]byte(`{"type":"metric","data":"not a point","timestamp":1}`))
	conn.push(metricPayload(t, "good", 100))

	// The valid point arriving last proves the malformed ones were
	// processed and dropped without killing the consumer.
	waitFor(t, 2*time.Second, func() bool { return len(c.Window()) == 1 })

	window := c.Window()
	if window[0].ID != "good" {
		t.Errorf("expected only the valid point retained, got %q", window[0].ID)
	}
	if c.State() != StateConnected {
		t.Errorf("expected consumer still connected, got %q", c.State())
	}
}

func TestConsumer_StateTransitions(t *testing.T) {
	var mu sync.Mutex
	var states []State
	snapshot := func() []State {
		mu.Lock()
		defer mu.Unlock()
		return append([]State(nil), states...)
	}

	conns := []*fakeConn{newFakeConn(1), newFakeConn(1)}
	src := &fakeSource{dial: func(call int) (Conn, error) {
		if call <= len(conns) {
			return conns[call-1], nil
		}
		return nil, errors.New("no more connections")
	}}

	c := New(src, Config{
		BaseReconnectInterval: time.Millisecond,
		Logger:                quietLogger(),
		OnState: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})

	c.Connect(context.Background())
	defer c.Disconnect()

	waitFor(t, 2*time.Second, func() bool { return c.State() == StateConnected })

	// Fault the first connection and let the consumer reconnect.
	conns[0].Close()

	waitFor(t, 2*time.Second, func() bool { return len(snapshot()) >= 5 })

	want := []State{StateConnected, StateDisconnected, StateReconnecting, StateDisconnected, StateConnected}
	got := snapshot()[:5]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transition %d: expected %q, got %q (full sequence %v)", i, want[i], got[i], got)
		}
	}

	if src.dialCount() != 2 {
		t.Errorf("expected 2 dial attempts, got %d", src.dialCount())
	}
}

func TestConsumer_RetriesExhaustedIsTerminal(t *testing.T) {
	src := &fakeSource{dial: func(int) (Conn, error) { return nil, errors.New("connection refused") }}
	c := New(src, Config{
		BaseReconnectInterval: time.Millisecond,
		MaxReconnectAttempts:  2,
		Logger:                quietLogger(),
	})

	c.Connect(context.Background())

	waitFor(t, 2*time.Second, func() bool { return c.State() == StateError })

	// Initial attempt plus two retries.
	if got := src.dialCount(); got != 3 {
		t.Errorf("expected 3 dial attempts, got %d", got)
	}

	err := c.LastError()
	if err == nil {
		t.Fatal("expected a terminal error")
	}
	if !strings.Contains(err.Error(), "2 reconnect attempts") {
		t.Errorf("unexpected terminal error: %v", err)
	}

	// No further attempts are scheduled.
	time.Sleep(20 * time.Millisecond)
	if got := src.dialCount(); got != 3 {
		t.Errorf("expected no dials after terminal error, got %d", got)
	}
}

func TestConsumer_DisconnectCancelsPendingRetry(t *testing.T) {
	src := &fakeSource{dial: func(int) (Conn, error) { return nil, errors.New("connection refused") }}
	c := New(src, Config{
		BaseReconnectInterval: time.Hour,
		Logger:                quietLogger(),
	})

	c.Connect(context.Background())

	waitFor(t, 2*time.Second, func() bool { return c.State() == StateReconnecting })

	start := time.Now()
	c.Disconnect()
	if time.Since(start) > time.Second {
		t.Error("Disconnect blocked on the pending retry timer")
	}

	if c.State() != StateDisconnected {
		t.Errorf("expected disconnected state, got %q", c.State())
	}
	if got := src.dialCount(); got != 1 {
		t.Errorf("expected no dials after disconnect, got %d", got)
	}
}

func TestConsumer_RetryCounterResetsAcrossSessions(t *testing.T) {
	src := &fakeSource{dial: func(int) (Conn, error) { return nil, errors.New("connection refused") }}
	c := New(src, Config{
		BaseReconnectInterval: time.Millisecond,
		MaxReconnectAttempts:  2,
		Logger:                quietLogger(),
	})

	c.Connect(context.Background())
	waitFor(t, 2*time.Second, func() bool { return c.State() == StateError })

	if got := src.dialCount(); got != 3 {
		t.Fatalf("expected 3 dial attempts in first session, got %d", got)
	}

	// A fresh Connect starts from a zero retry counter: three more dials
	// before the second terminal error.
	c.Connect(context.Background())
	waitFor(t, 2*time.Second, func() bool { return src.dialCount() == 6 })
	waitFor(t, 2*time.Second, func() bool { return c.State() == StateError })
}

func TestConsumer_ConnectionMessageUpdatesLivenessOnly(t *testing.T) {
	conn := newFakeConn(4)
	src := &fakeSource{dial: func(int) (Conn, error) { return conn, nil }}
	c := New(src, Config{Logger: quietLogger()})

	c.Connect(context.Background())
	defer c.Disconnect()

	waitFor(t, 2*time.Second, func() bool { return c.State() == StateConnected })

	msg := domain.NewConnectionMessage("connected", time.Now())
	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal connection message: %v", err)
	}
	conn.push(payload)

	waitFor(t, 2*time.Second, func() bool { return !c.LastSeen().IsZero() })

	if n := len(c.Window()); n != 0 {
		t.Errorf("expected empty window after connection message, got %d points", n)
	}
}

// pushSource feeds the real stream server in the end-to-end test.
type pushSource struct{}

func (pushSource) NextPoint(ctx context.Context) (domain.MetricPoint, error) {
	return domain.MetricPoint{
		ID:             "live",
		Timestamp:      time.Now(),
		Revenue:        500,
		ActiveUsers:    10,
		EngagementRate: 55,
	}, nil
}

func TestConsumer_EndToEndSSE(t *testing.T) {
	s := stream.New(pushSource{}, stream.Options{
		UpdateInterval:    10 * time.Millisecond,
		HeartbeatInterval: 25 * time.Millisecond,
		Logger:            quietLogger(),
	})

	server := httptest.NewServer(s.SSEHandler())
	defer server.Close()

	var points int
	var mu sync.Mutex
	c := New(NewSSESource(server.URL), Config{
		Logger: quietLogger(),
		OnPoint: func(domain.MetricPoint) {
			mu.Lock()
			points++
			mu.Unlock()
		},
	})

	c.Connect(context.Background())
	defer c.Disconnect()

	waitFor(t, 2*time.Second, func() bool { return len(c.Window()) >= 2 })

	if c.State() != StateConnected {
		t.Errorf("expected connected state, got %q", c.State())
	}
	mu.Lock()
	defer mu.Unlock()
	if points < 2 {
		t.Errorf("expected at least 2 OnPoint callbacks, got %d", points)
	}
	for _, p := range c.Window() {
		if p.Revenue != 500 {
			t.Errorf("unexpected point in window: %+v", p)
		}
	}
}
