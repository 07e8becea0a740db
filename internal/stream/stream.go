// Package stream pushes live metric updates to subscribers.
package stream

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"metrics-feed/internal/domain"
	"metrics-feed/internal/observability"
)

// Default intervals for subscriber streams.
const (
	DefaultUpdateInterval    = 5 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultBuffer            = 8
)

// PointSource produces the next live metric point for a data tick.
type PointSource interface {
	NextPoint(ctx context.Context) (domain.MetricPoint, error)
}

// EventKind discriminates stream events delivered to subscribers.
type EventKind int

const (
	// KindMessage carries a StreamMessage to be delivered as a data record.
	KindMessage EventKind = iota
	// KindHeartbeat is a payload-free keep-alive marker.
	KindHeartbeat
)

// Event is a single item delivered to a subscriber.
type Event struct {
	Kind EventKind
	Msg  domain.StreamMessage
}

// Options contains configuration for creating a Stream.
type Options struct {
	UpdateInterval    time.Duration // Default: 5s
	HeartbeatInterval time.Duration // Default: 30s
	Buffer            int           // Per-subscriber channel buffer, default: 8
	Logger            *log.Logger
}

// Stream fans live metric updates out to subscribers. Each subscriber owns
// an isolated goroutine and channel; no state is shared between them.
type Stream struct {
	source            PointSource
	updateInterval    time.Duration
	heartbeatInterval time.Duration
	buffer            int
	logger            *log.Logger

	active atomic.Int64
}

// New creates a Stream over the given point source.
func New(source PointSource, opts Options) *Stream {
	updateInterval := opts.UpdateInterval
	if updateInterval == 0 {
		updateInterval = DefaultUpdateInterval
	}

	heartbeatInterval := opts.HeartbeatInterval
	if heartbeatInterval == 0 {
		heartbeatInterval = DefaultHeartbeatInterval
	}

	buffer := opts.Buffer
	if buffer == 0 {
		buffer = DefaultBuffer
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Stream{
		source:            source,
		updateInterval:    updateInterval,
		heartbeatInterval: heartbeatInterval,
		buffer:            buffer,
		logger:            logger,
	}
}

// Subscribe starts a per-subscriber event loop bound to ctx. The returned
// channel delivers a connection message first, then metric messages on every
// update tick and heartbeat markers on every heartbeat tick. The channel is
// closed exactly once when ctx is cancelled; nothing is emitted after that.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	out := make(chan Event, s.buffer)
	go s.run(ctx, out)
	return out
}

// Active returns the number of currently connected subscribers.
func (s *Stream) Active() int64 {
	return s.active.Load()
}

// UpdateInterval returns the configured data tick interval.
func (s *Stream) UpdateInterval() time.Duration {
	return s.updateInterval
}

// HeartbeatInterval returns the configured heartbeat interval.
func (s *Stream) HeartbeatInterval() time.Duration {
	return s.heartbeatInterval
}

func (s *Stream) run(ctx context.Context, out chan<- Event) {
	defer close(out)

	id := uuid.New().String()
	s.active.Add(1)
	observability.RecordSubscriberConnected()
	s.logger.Printf("Subscriber %s connected", id)
	defer func() {
		s.active.Add(-1)
		observability.RecordSubscriberDisconnected()
		s.logger.Printf("Subscriber %s disconnected", id)
	}()

	connected := domain.NewConnectionMessage("connected", time.Now())
	if !s.send(ctx, out, Event{Kind: KindMessage, Msg: connected}) {
		return
	}
	observability.RecordStreamMessage(string(domain.MessageTypeConnection))

	dataTicker := time.NewTicker(s.updateInterval)
	defer dataTicker.Stop()
	heartbeatTicker := time.NewTicker(s.heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-dataTicker.C:
			point, err := s.source.NextPoint(ctx)
			if err != nil {
				// A failed tick is skipped; the stream stays up.
				s.logger.Printf("Skipping stream update tick: %v", err)
				observability.RecordStreamTickError()
				continue
			}
			if !s.send(ctx, out, Event{Kind: KindMessage, Msg: domain.NewMetricMessage(point, time.Now())}) {
				return
			}
			observability.RecordStreamMessage(string(domain.MessageTypeMetric))

		case <-heartbeatTicker.C:
			if !s.send(ctx, out, Event{Kind: KindHeartbeat}) {
				return
			}
		}
	}
}

// send delivers ev unless ctx is already cancelled. The explicit Err check
// keeps a cancelled subscriber from receiving a buffered send that a bare
// select might still pick.
func (s *Stream) send(ctx context.Context, out chan<- Event, ev Event) bool {
	if ctx.Err() != nil {
		return false
	}

	select {
	case <-ctx.Done():
		return false
	case out <- ev:
		return true
	}
}
