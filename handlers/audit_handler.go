package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/models"
	"github.com/agentgrid/control-plane/services/audit"
	"github.com/agentgrid/control-plane/utils"
)

// AuditHandler handles audit log queries
type AuditHandler struct {
	auditLog *audit.Log
	logger   *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(auditLog *audit.Log, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{auditLog: auditLog, logger: logger}
}

// HandleQuery handles GET /api/v1/organizations/{orgID}/audit with
// optional agent_id, execution_id, action and limit query parameters.
func (h *AuditHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}

	query := audit.Query{OrgID: orgID}
	if raw := r.URL.Query().Get("agent_id"); raw != "" {
		agentID, err := uuid.Parse(raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "invalid agent_id", nil)
			return
		}
		query.AgentID = &agentID
	}
	if raw := r.URL.Query().Get("execution_id"); raw != "" {
		executionID, err := uuid.Parse(raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "invalid execution_id", nil)
			return
		}
		query.ExecutionID = &executionID
	}
	if raw := r.URL.Query().Get("action"); raw != "" {
		query.Action = models.AuditAction(raw)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			_ = utils.WriteBadRequest(w, "invalid limit", nil)
			return
		}
		query.Limit = limit
	}

	entries := h.auditLog.Query(query)
	_ = utils.WriteOK(w, entries)
}

// HandleDelegationChain handles GET /api/v1/organizations/{orgID}/audit/executions/{executionID}
func (h *AuditHandler) HandleDelegationChain(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}
	executionID, ok := parseUUIDParam(w, r, "executionID")
	if !ok {
		return
	}

	chain := h.auditLog.DelegationChain(orgID, executionID)
	_ = utils.WriteOK(w, chain)
}
