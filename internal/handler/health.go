package handler

import (
	"database/sql"
	"net/http"
)

// HealthHandler serves liveness and readiness checks.
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler returns a HealthHandler. db may be nil; then readiness
// reports healthy without a database check.
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "gameboard"})
}
