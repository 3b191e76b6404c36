package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/services/tools"
	"github.com/agentgrid/control-plane/utils"
)

// HealthHandler handles liveness and readiness probes
type HealthHandler struct {
	db       *sql.DB // nil when running on the in-memory store
	registry *tools.Registry
	logger   *zap.Logger
	started  time.Time
}

// NewHealthHandler creates a new HealthHandler. db may be nil.
func NewHealthHandler(db *sql.DB, registry *tools.Registry, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, registry: registry, logger: logger, started: time.Now()}
}

// HandleHealth handles GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// HandleReady handles GET /readyz. Readiness fails when the configured
// database is unreachable.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", zap.Error(err))
			_ = utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"reason": "database unreachable",
			})
			return
		}
	}
	_ = utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleListTools handles GET /api/v1/tools
func (h *HealthHandler) HandleListTools(w http.ResponseWriter, r *http.Request) {
	names := h.registry.List()
	out := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		tool, err := h.registry.Get(name)
		if err != nil {
			continue
		}
		out = append(out, map[string]interface{}{
			"name":        tool.Name(),
			"description": tool.Description(),
			"schema":      tool.Schema(),
		})
	}
	_ = utils.WriteOK(w, out)
}
