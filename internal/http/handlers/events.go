package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/hlsforge/internal/service/progress"
)

// EventsHandler streams transcode progress to clients over SSE.
type EventsHandler struct {
	service           *progress.Service
	heartbeatInterval time.Duration
	logger            *slog.Logger
}

// NewEventsHandler creates an SSE events handler.
func NewEventsHandler(service *progress.Service, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		service:           service,
		heartbeatInterval: 15 * time.Second,
		logger:            logger,
	}
}

// RegisterRoutes mounts the events route on the router.
func (h *EventsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/progress/events", h.Stream)
}

// Stream holds the connection open and writes one SSE message per
// progress event. Filters come from the user_id and job_id query
// parameters; absent the user_id filter, the requesting user header is
// used so clients see their own jobs by default.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	filter := progress.Filter{
		UserID: r.URL.Query().Get("user_id"),
		JobID:  r.URL.Query().Get("job_id"),
	}
	if filter.UserID == "" && filter.JobID == "" {
		filter.UserID = requestingUser(r)
	}

	sub := h.service.Subscribe(filter)
	defer h.service.Unsubscribe(sub.ID)

	rc := http.NewResponseController(w)

	fmt.Fprintf(w, ":connected\n\n")
	if err := rc.Flush(); err != nil {
		h.logger.Debug("initial SSE flush failed", "error", err)
		return
	}

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":heartbeat %d\n\n", time.Now().Unix())
			if err := rc.Flush(); err != nil {
				return
			}
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("marshalling progress event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload)
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
