package domain

import "time"

// MessageType tags a stream message payload.
type MessageType string

// Stream message types.
const (
	MessageTypeMetric     MessageType = "metric"
	MessageTypeConnection MessageType = "connection"
	MessageTypeError      MessageType = "error"
)

// StreamMessage is the tagged union emitted over the push transport.
// Timestamp is the emission instant in epoch milliseconds.
type StreamMessage struct {
	Type      MessageType `json:"type"`
	Data      any         `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ConnectionInfo is the payload of connection messages.
type ConnectionInfo struct {
	Status string `json:"status"`
}

// ErrorInfo is the payload of error messages.
type ErrorInfo struct {
	Message string `json:"message"`
}

// NewMetricMessage wraps a point for emission at the given instant.
func NewMetricMessage(p MetricPoint, at time.Time) StreamMessage {
	return StreamMessage{Type: MessageTypeMetric, Data: p, Timestamp: at.UnixMilli()}
}

// NewConnectionMessage reports a connection status change.
func NewConnectionMessage(status string, at time.Time) StreamMessage {
	return StreamMessage{Type: MessageTypeConnection, Data: ConnectionInfo{Status: status}, Timestamp: at.UnixMilli()}
}

// NewErrorMessage reports a server-side stream failure.
func NewErrorMessage(message string, at time.Time) StreamMessage {
	return StreamMessage{Type: MessageTypeError, Data: ErrorInfo{Message: message}, Timestamp: at.UnixMilli()}
}
