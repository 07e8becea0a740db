package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSEHandler returns a handler serving the live stream as Server-Sent
// Events. Messages are framed as "data: <json>\n\n" records; heartbeats are
// framed as ":heartbeat\n\n" comment lines.
func (s *Stream) SSEHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		for ev := range s.Subscribe(r.Context()) {
			switch ev.Kind {
			case KindHeartbeat:
				fmt.Fprint(w, ":heartbeat\n\n")
			case KindMessage:
				payload, err := json.Marshal(ev.Msg)
				if err != nil {
					s.logger.Printf("Dropping unencodable stream message: %v", err)
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
			}
			flusher.Flush()
		}
	}
}
