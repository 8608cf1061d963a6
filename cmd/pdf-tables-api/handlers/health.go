package handlers

import (
	"net/http"
	"os"
)

// Pool reports worker pool load.
type Pool interface {
	InFlight() int
	Capacity() int
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	service string
	dirs    []string
	pool    Pool
}

// NewHealthHandler creates a health handler that checks dirs and pool on readiness.
func NewHealthHandler(service string, pool Pool, dirs ...string) *HealthHandler {
	return &HealthHandler{service: service, dirs: dirs, pool: pool}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": h.service})
}

// Ready handles GET /ready. The service is ready when its storage directories
// exist and the worker pool has room for at least one job.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	for _, dir := range h.dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "reason": "storage directory missing: " + dir})
			return
		}
	}

	inFlight, capacity := h.pool.InFlight(), h.pool.Capacity()
	body := map[string]any{"status": "ready", "in_flight": inFlight, "capacity": capacity}
	if inFlight >= capacity {
		body["status"] = "saturated"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
