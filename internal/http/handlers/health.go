package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"gorm.io/gorm"
)

// HealthResponse is the health check body.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	MemoryPercent float64 `json:"memory_percent,omitempty"`
	LoadAvg1m     float64 `json:"load_avg_1m,omitempty"`
	Database      string  `json:"database"`
}

// HealthHandler reports process and dependency health.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        *gorm.DB
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(version string, db *gorm.DB) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		db:        db,
	}
}

// RegisterRoutes mounts the health route on the router.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Get)
}

// Get returns liveness plus lightweight system stats. The database check
// degrades status but keeps the endpoint at 200 so orchestrators see the
// process as alive.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		Database:      "ok",
	}

	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		resp.MemoryPercent = vm.UsedPercent
	}
	if avg, err := load.AvgWithContext(r.Context()); err == nil {
		resp.LoadAvg1m = avg.Load1
	}

	if h.db != nil {
		if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
