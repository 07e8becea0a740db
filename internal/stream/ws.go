package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler returns a handler serving the live stream over a WebSocket
// connection. Messages are sent as text frames; heartbeats are sent as ping
// control frames.
func (s *Stream) WSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Printf("WebSocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Inbound frames are discarded; a read error means the client is gone.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		for ev := range s.Subscribe(ctx) {
			deadline := time.Now().Add(wsWriteTimeout)

			var writeErr error
			switch ev.Kind {
			case KindHeartbeat:
				writeErr = conn.WriteControl(websocket.PingMessage, nil, deadline)
			case KindMessage:
				payload, err := json.Marshal(ev.Msg)
				if err != nil {
					s.logger.Printf("Dropping unencodable stream message: %v", err)
					continue
				}
				conn.SetWriteDeadline(deadline)
				writeErr = conn.WriteMessage(websocket.TextMessage, payload)
			}
			if writeErr != nil {
				s.logger.Printf("Closing WebSocket subscriber: %v", writeErr)
				break
			}
		}

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(wsWriteTimeout))
	}
}
