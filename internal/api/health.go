package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/najdeno/internal/presence"
)

// HealthHandler reports liveness and presence counts.
type HealthHandler struct {
	DB       *sqlx.DB
	Registry *presence.Registry
}

type healthResponse struct {
	Status   string         `json:"status"`
	Database string         `json:"database"`
	Presence presence.Stats `json:"presence"`
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "ok", Presence: h.Registry.Stats()}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.DB.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = err.Error()
		jsonResponse(w, http.StatusServiceUnavailable, resp)
		return
	}

	jsonResponse(w, http.StatusOK, resp)
}
