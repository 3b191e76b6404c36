package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/models"
	"github.com/agentgrid/control-plane/services/policy"
	"github.com/agentgrid/control-plane/utils"
)

// SetPolicyRequest is the body for setting an org- or agent-level policy
type SetPolicyRequest struct {
	Tools                   []models.ToolPermission `json:"tools"`
	TokenLimit              int64                   `json:"token_limit" validate:"gte=0"`
	ExecutionTimeoutSeconds int                     `json:"execution_timeout_seconds" validate:"gte=0"`
}

// EvaluateRequest is the body for a dry-run policy evaluation
type EvaluateRequest struct {
	ToolName        string `json:"tool_name" validate:"required"`
	EstimatedTokens int64  `json:"estimated_tokens" validate:"gte=0"`
}

// PolicyHandler handles policy management requests
type PolicyHandler struct {
	policies *policy.Service
	logger   *zap.Logger
}

// NewPolicyHandler creates a new PolicyHandler
func NewPolicyHandler(policies *policy.Service, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{policies: policies, logger: logger}
}

func (h *PolicyHandler) setPolicy(w http.ResponseWriter, r *http.Request, orgID uuid.UUID, agentID *uuid.UUID) {
	var req SetPolicyRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	p, err := h.policies.Set(orgID, agentID, req.Tools, req.TokenLimit, req.ExecutionTimeoutSeconds)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, p)
}

// HandleSetOrgPolicy handles PUT /api/v1/organizations/{orgID}/policy
func (h *PolicyHandler) HandleSetOrgPolicy(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}
	h.setPolicy(w, r, orgID, nil)
}

// HandleSetAgentPolicy handles PUT /api/v1/organizations/{orgID}/agents/{agentID}/policy
func (h *PolicyHandler) HandleSetAgentPolicy(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}
	agentID, ok := parseUUIDParam(w, r, "agentID")
	if !ok {
		return
	}
	h.setPolicy(w, r, orgID, &agentID)
}

// HandleGetOrgPolicy handles GET /api/v1/organizations/{orgID}/policy
func (h *PolicyHandler) HandleGetOrgPolicy(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}

	p, err := h.policies.Get(orgID, nil)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if p == nil {
		_ = utils.WriteNotFound(w, "no policy configured")
		return
	}
	_ = utils.WriteOK(w, p)
}

// HandleGetAgentPolicy handles GET /api/v1/organizations/{orgID}/agents/{agentID}/policy
func (h *PolicyHandler) HandleGetAgentPolicy(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}
	agentID, ok := parseUUIDParam(w, r, "agentID")
	if !ok {
		return
	}

	p, err := h.policies.Get(orgID, &agentID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if p == nil {
		_ = utils.WriteNotFound(w, "no policy configured")
		return
	}
	_ = utils.WriteOK(w, p)
}

// HandleGetEffectivePolicy handles GET /api/v1/organizations/{orgID}/agents/{agentID}/policy/effective
func (h *PolicyHandler) HandleGetEffectivePolicy(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}
	agentID, ok := parseUUIDParam(w, r, "agentID")
	if !ok {
		return
	}

	p, err := h.policies.GetEffective(orgID, agentID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if p == nil {
		_ = utils.WriteNotFound(w, "no policy configured")
		return
	}
	_ = utils.WriteOK(w, p)
}

// HandleEvaluate handles POST /api/v1/organizations/{orgID}/agents/{agentID}/policy/evaluate.
// Evaluation is a dry run: no budget is consumed.
func (h *PolicyHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}
	agentID, ok := parseUUIDParam(w, r, "agentID")
	if !ok {
		return
	}

	var req EvaluateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	decision, err := h.policies.Evaluate(orgID, agentID, req.ToolName, req.EstimatedTokens)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, decision)
}
