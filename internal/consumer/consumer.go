// Package consumer maintains a live metric window over a reconnecting
// stream connection.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"metrics-feed/internal/domain"
)

// State is the connection lifecycle state of a Consumer.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateError        State = "error"
)

// Default reconnect and window parameters.
const (
	DefaultBaseReconnectInterval = 3 * time.Second
	DefaultMaxReconnectAttempts  = 5
	DefaultWindowSize            = 50
)

// Config contains configuration for creating a Consumer. The callbacks run
// on the consumer's goroutine and must not block.
type Config struct {
	BaseReconnectInterval time.Duration // Default: 3s
	MaxReconnectAttempts  int           // Default: 5
	WindowSize            int           // Retained points, default: 50
	Logger                *log.Logger
	OnPoint               func(domain.MetricPoint)
	OnState               func(State)
}

// Consumer receives stream messages from a Source, retains a bounded window
// of the most recent metric points, and reconnects with exponential backoff
// when the connection faults. At most one underlying connection is active
// at any time.
type Consumer struct {
	source       Source
	baseInterval time.Duration
	maxAttempts  int
	windowSize   int
	logger       *log.Logger
	onPoint      func(domain.MetricPoint)
	onState      func(State)

	mu         sync.Mutex
	state      State
	retryCount int
	window     []domain.MetricPoint
	lastErr    error
	lastSeen   time.Time
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// New creates a Consumer over the given source.
func New(source Source, cfg Config) *Consumer {
	baseInterval := cfg.BaseReconnectInterval
	if baseInterval == 0 {
		baseInterval = DefaultBaseReconnectInterval
	}

	maxAttempts := cfg.MaxReconnectAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxReconnectAttempts
	}

	windowSize := cfg.WindowSize
	if windowSize == 0 {
		windowSize = DefaultWindowSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Consumer{
		source:       source,
		baseInterval: baseInterval,
		maxAttempts:  maxAttempts,
		windowSize:   windowSize,
		logger:       logger,
		onPoint:      cfg.OnPoint,
		onState:      cfg.OnState,
		state:        StateDisconnected,
	}
}

// ReconnectDelay returns the backoff delay before reconnect attempt number
// retry (zero-based): base doubled retry times.
func ReconnectDelay(base time.Duration, retry int) time.Duration {
	return base << uint(retry)
}

// Connect starts the consumer loop and returns immediately; progress is
// reported through OnState. Calling Connect while a loop is running is a
// no-op.
func (c *Consumer) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.logger.Printf("Connect ignored: consumer already running")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.running = true
	c.cancel = cancel
	c.done = done
	c.retryCount = 0
	c.lastErr = nil
	c.mu.Unlock()

	go c.run(runCtx, done)
}

// Disconnect stops the consumer, cancels any pending reconnect, and waits
// for the loop to exit. The retry counter is reset and the state returns to
// disconnected regardless of what it was. Safe to call at any time.
func (c *Consumer) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	c.mu.Lock()
	c.running = false
	c.retryCount = 0
	prev := c.state
	c.state = StateDisconnected
	c.mu.Unlock()

	if prev != StateDisconnected && c.onState != nil {
		c.onState(StateDisconnected)
	}
}

// State returns the current connection state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Window returns a copy of the retained metric points, oldest first.
func (c *Consumer) Window() []domain.MetricPoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.MetricPoint, len(c.window))
	copy(out, c.window)
	return out
}

// LastError returns the terminal failure after retries were exhausted, or
// nil.
func (c *Consumer) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// LastSeen returns the arrival time of the most recent well-formed message.
func (c *Consumer) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Consumer) run(ctx context.Context, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		close(done)
	}()

	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}

		// Each attempt dials from the disconnected state.
		c.setState(StateDisconnected)

		conn, err := c.source.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Printf("Stream dial failed: %v", err)
			if !c.scheduleRetry(ctx, err) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.retryCount = 0
		c.mu.Unlock()
		c.setState(StateConnected)

		err = c.readLoop(ctx, conn)
		conn.Close()
		c.setState(StateDisconnected)

		if ctx.Err() != nil {
			return
		}

		c.logger.Printf("Stream connection lost: %v", err)
		if !c.scheduleRetry(ctx, err) {
			return
		}
	}
}

// scheduleRetry arranges the next reconnect attempt with exponential
// backoff. It returns false when retries are exhausted or ctx is cancelled.
func (c *Consumer) scheduleRetry(ctx context.Context, cause error) bool {
	c.mu.Lock()
	retry := c.retryCount
	if retry >= c.maxAttempts {
		c.lastErr = fmt.Errorf("giving up after %d reconnect attempts: %w", retry, cause)
		c.mu.Unlock()
		c.setState(StateError)
		return false
	}
	c.retryCount++
	c.mu.Unlock()

	delay := ReconnectDelay(c.baseInterval, retry)
	c.logger.Printf("Reconnecting in %v (attempt %d/%d)", delay, retry+1, c.maxAttempts)
	c.setState(StateReconnecting)

	select {
	case <-ctx.Done():
		c.setState(StateDisconnected)
		return false
	case <-time.After(delay):
		return true
	}
}

// readLoop receives payloads until the connection faults or ctx is
// cancelled. All window and bookkeeping mutations happen here, on the
// consumer's single goroutine.
func (c *Consumer) readLoop(ctx context.Context, conn Conn) error {
	payloads := make(chan []byte)
	errs := make(chan error, 1)

	go func() {
		for {
			payload, err := conn.Recv()
			if err != nil {
				errs <- err
				return
			}
			select {
			case payloads <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return err
		case payload := <-payloads:
			c.handlePayload(payload)
		}
	}
}

// envelope mirrors the stream message wire shape, leaving the payload raw
// for per-type decoding.
type envelope struct {
	Type      domain.MessageType `json:"type"`
	Data      json.RawMessage    `json:"data"`
	Timestamp int64              `json:"timestamp"`
}

func (c *Consumer) handlePayload(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		c.logger.Printf("Dropping malformed stream message: %v", err)
		return
	}

	switch env.Type {
	case domain.MessageTypeMetric:
		var point domain.MetricPoint
		if err := json.Unmarshal(env.Data, &point); err != nil {
			c.logger.Printf("Dropping malformed metric payload: %v", err)
			return
		}
		c.touch()
		c.appendPoint(point)

	case domain.MessageTypeConnection:
		c.touch()

	case domain.MessageTypeError:
		var info domain.ErrorInfo
		if err := json.Unmarshal(env.Data, &info); err != nil {
			c.logger.Printf("Dropping malformed error payload: %v", err)
			return
		}
		c.touch()
		c.logger.Printf("Stream reported error: %s", info.Message)

	default:
		c.logger.Printf("Dropping stream message with unknown type %q", env.Type)
	}
}

// appendPoint adds a point to the window, evicting the oldest entries past
// the cap.
func (c *Consumer) appendPoint(p domain.MetricPoint) {
	c.mu.Lock()
	c.window = append(c.window, p)
	if len(c.window) > c.windowSize {
		c.window = c.window[len(c.window)-c.windowSize:]
	}
	c.mu.Unlock()

	if c.onPoint != nil {
		c.onPoint(p)
	}
}

func (c *Consumer) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// setState records a state transition, invoking OnState only on change.
func (c *Consumer) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	if c.onState != nil {
		c.onState(s)
	}
}
