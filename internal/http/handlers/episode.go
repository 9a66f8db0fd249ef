package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/hlsforge/internal/models"
	"github.com/jmylchreest/hlsforge/internal/repository"
	"github.com/jmylchreest/hlsforge/internal/transcode"
)

// userIDHeader identifies the requesting user for progress routing. There
// is no authentication layer; the value is advisory.
const userIDHeader = "X-User-ID"

func requestingUser(r *http.Request) string {
	if id := r.Header.Get(userIDHeader); id != "" {
		return id
	}
	return "anonymous"
}

// EpisodeHandler serves episode registration, transcode submission, and
// status lookups.
type EpisodeHandler struct {
	repo   repository.EpisodeRepository
	pool   *transcode.Pool
	logger *slog.Logger
}

// NewEpisodeHandler creates an episode handler.
func NewEpisodeHandler(repo repository.EpisodeRepository, pool *transcode.Pool, logger *slog.Logger) *EpisodeHandler {
	return &EpisodeHandler{repo: repo, pool: pool, logger: logger}
}

// RegisterRoutes mounts the episode routes on the router.
func (h *EpisodeHandler) RegisterRoutes(r chi.Router) {
	r.Post("/episodes", h.Create)
	r.Get("/episodes/{id}", h.Get)
	r.Post("/episodes/{id}/transcode", h.Transcode)
}

// CreateEpisodeRequest registers an uploaded source file as an episode.
type CreateEpisodeRequest struct {
	Title      string `json:"title"`
	SourcePath string `json:"source_path"`
}

// Create registers a new episode pointing at an already uploaded source.
func (h *EpisodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateEpisodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.SourcePath == "" {
		writeError(w, http.StatusBadRequest, "title and source_path are required")
		return
	}
	if _, err := os.Stat(req.SourcePath); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "source file not found")
		return
	}

	episode := &models.Episode{
		Title:      req.Title,
		SourcePath: req.SourcePath,
		Status:     models.EpisodeStatusUploaded,
	}
	if err := h.repo.Create(r.Context(), episode); err != nil {
		h.logger.Error("creating episode", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create episode")
		return
	}
	writeJSON(w, http.StatusCreated, episode)
}

// Get returns an episode with its current asset status.
func (h *EpisodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseULID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid episode id")
		return
	}
	episode, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("fetching episode", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch episode")
		return
	}
	if episode == nil {
		writeError(w, http.StatusNotFound, "episode not found")
		return
	}
	writeJSON(w, http.StatusOK, episode)
}

// TranscodeResponse acknowledges an accepted transcode job.
type TranscodeResponse struct {
	JobID     string `json:"job_id"`
	EpisodeID string `json:"episode_id"`
	State     string `json:"state"`
}

// Transcode submits an episode for transcoding. Accepted jobs return 202;
// the job then runs asynchronously and the episode's status records the
// terminal outcome.
func (h *EpisodeHandler) Transcode(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseULID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid episode id")
		return
	}
	episode, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("fetching episode", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch episode")
		return
	}
	if episode == nil {
		writeError(w, http.StatusNotFound, "episode not found")
		return
	}
	if episode.Status == models.EpisodeStatusProcessing {
		writeError(w, http.StatusConflict, "episode is already being processed")
		return
	}
	if episode.SourcePath == "" {
		writeError(w, http.StatusConflict, "episode has no source file")
		return
	}

	job, err := h.pool.Submit(r.Context(), episode, requestingUser(r))
	switch {
	case errors.Is(err, repository.ErrAlreadyProcessing):
		writeError(w, http.StatusConflict, "episode is already being processed")
		return
	case errors.Is(err, transcode.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "transcode queue is full")
		return
	case errors.Is(err, transcode.ErrShuttingDown):
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	case err != nil:
		h.logger.Error("submitting transcode job", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to submit job")
		return
	}

	writeJSON(w, http.StatusAccepted, TranscodeResponse{
		JobID:     job.ID,
		EpisodeID: episode.ID.String(),
		State:     string(job.State()),
	})
}
