package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/models"
	"github.com/agentgrid/control-plane/services/agent"
	"github.com/agentgrid/control-plane/services/token"
	"github.com/agentgrid/control-plane/utils"
)

// RegisterAgentRequest is the body for agent registration
type RegisterAgentRequest struct {
	Name            string           `json:"name" validate:"required"`
	Role            models.AgentRole `json:"role" validate:"required,oneof=executor planner reviewer admin"`
	DelegatedUserID *uuid.UUID       `json:"delegated_user_id,omitempty"`
}

// AgentHandler handles agent identity requests
type AgentHandler struct {
	agents *agent.Service
	tokens *token.Service
	logger *zap.Logger
}

// NewAgentHandler creates a new AgentHandler
func NewAgentHandler(agents *agent.Service, tokens *token.Service, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{agents: agents, tokens: tokens, logger: logger}
}

// HandleRegister handles POST /api/v1/organizations/{orgID}/agents
func (h *AgentHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}

	var req RegisterAgentRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	ag, err := h.agents.Register(orgID, req.Name, req.Role, req.DelegatedUserID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, ag)
}

// HandleGet handles GET /api/v1/organizations/{orgID}/agents/{agentID}
func (h *AgentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}
	agentID, ok := parseUUIDParam(w, r, "agentID")
	if !ok {
		return
	}

	ag, err := h.agents.Get(orgID, agentID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, ag)
}

// HandleList handles GET /api/v1/organizations/{orgID}/agents
func (h *AgentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}

	agents, err := h.agents.List(orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, agents)
}

// HandleDeactivate handles POST /api/v1/organizations/{orgID}/agents/{agentID}/deactivate.
// Deactivation also revokes the agent's live scoped tokens.
func (h *AgentHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}
	agentID, ok := parseUUIDParam(w, r, "agentID")
	if !ok {
		return
	}

	ag, err := h.agents.Deactivate(orgID, agentID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	revoked := h.tokens.RevokeAllForAgent(agentID)
	h.logger.Info("agent deactivated",
		zap.String("agent_id", agentID.String()),
		zap.Int("tokens_revoked", revoked))

	_ = utils.WriteOK(w, ag)
}
