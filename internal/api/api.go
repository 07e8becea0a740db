// Package api exposes the HTTP surface of the metrics feed.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"metrics-feed/internal/domain"
	"metrics-feed/internal/generator"
	"metrics-feed/internal/observability"
	"metrics-feed/internal/stats"
	"metrics-feed/internal/stream"
)

// DefaultTimeRange applies when a history request omits the timeRange
// parameter.
const DefaultTimeRange = domain.Range30d

// API serves metric history and the live stream endpoints.
type API struct {
	gen       *generator.Generator
	stream    *stream.Stream
	logger    *log.Logger
	startedAt time.Time
}

// New creates an API over the given generator and stream.
func New(gen *generator.Generator, s *stream.Stream, logger *log.Logger) *API {
	if logger == nil {
		logger = log.Default()
	}
	return &API{
		gen:       gen,
		stream:    s,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Routes returns a mux with all feed endpoints mounted.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", a.handleMetrics)
	mux.HandleFunc("/stream", a.stream.SSEHandler())
	mux.HandleFunc("/stream/ws", a.stream.WSHandler())
	mux.HandleFunc("/health", a.handleHealth)
	mux.HandleFunc("/status", a.handleStatus)
	return mux
}

// RangeWindow bounds the series carried by a history response.
type RangeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// HistoryResponse is the body of a successful history request.
type HistoryResponse struct {
	Data      []domain.MetricPoint `json:"data"`
	Summary   domain.Summary       `json:"summary"`
	TimeRange RangeWindow          `json:"timeRange"`
}

// StatusResponse reports runtime state of the feed server.
type StatusResponse struct {
	Status            string `json:"status"`
	Uptime            string `json:"uptime"`
	StartedAt         string `json:"started_at"`
	ActiveSubscribers int64  `json:"active_subscribers"`
	UpdateInterval    string `json:"update_interval"`
	HeartbeatInterval string `json:"heartbeat_interval"`
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rangeLabel := "invalid"
	status := http.StatusOK
	defer func() {
		observability.RecordHistoryRequest(rangeLabel, status, time.Since(start).Seconds())
	}()

	tr := DefaultTimeRange
	if raw := r.URL.Query().Get("timeRange"); raw != "" {
		parsed, err := domain.ParseTimeRange(raw)
		if err != nil {
			status = http.StatusBadRequest
			a.writeError(w, status, err.Error())
			return
		}
		tr = parsed
	}
	rangeLabel = string(tr)

	end := time.Now()
	points, err := a.gen.GenerateSeries(tr, end)
	if err != nil {
		a.logger.Printf("History generation failed: %v", err)
		status = http.StatusInternalServerError
		a.writeError(w, status, "failed to generate metrics")
		return
	}

	// The reported bounds are the window's nominal span, independent of
	// any leading points trimmed by the generator.
	window := tr.Window()
	a.writeJSON(w, http.StatusOK, HistoryResponse{
		Data:    points,
		Summary: stats.Summarize(points),
		TimeRange: RangeWindow{
			Start: end.Add(-window.Interval * time.Duration(window.Points-1)),
			End:   end,
		},
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, StatusResponse{
		Status:            "running",
		Uptime:            time.Since(a.startedAt).Round(time.Second).String(),
		StartedAt:         a.startedAt.UTC().Format(time.RFC3339),
		ActiveSubscribers: a.stream.Active(),
		UpdateInterval:    a.stream.UpdateInterval().String(),
		HeartbeatInterval: a.stream.HeartbeatInterval().String(),
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *API) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]string{"error": message})
}
