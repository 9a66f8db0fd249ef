package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/hlsforge/internal/transcode"
)

// JobHandler serves transcode job status snapshots.
type JobHandler struct {
	pool *transcode.Pool
}

// NewJobHandler creates a job handler.
func NewJobHandler(pool *transcode.Pool) *JobHandler {
	return &JobHandler{pool: pool}
}

// RegisterRoutes mounts the job routes on the router.
func (h *JobHandler) RegisterRoutes(r chi.Router) {
	r.Get("/jobs/{id}", h.Get)
}

// Get returns a point-in-time snapshot of a job, including per-subprocess
// resource usage while encodes are running.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	status, err := h.pool.Status(chi.URLParam(r, "id"))
	if errors.Is(err, transcode.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
