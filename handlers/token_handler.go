package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/services/agent"
	"github.com/agentgrid/control-plane/services/token"
	"github.com/agentgrid/control-plane/utils"
)

// ExchangeTokenRequest is the body for scoped token exchange
type ExchangeTokenRequest struct {
	OrgID         uuid.UUID `json:"org_id" validate:"required"`
	AgentID       uuid.UUID `json:"agent_id" validate:"required"`
	ParentTokenID string    `json:"parent_token_id,omitempty"`
	ToolName      string    `json:"tool_name" validate:"required"`
	Scopes        []string  `json:"scopes,omitempty"`
	TTLSeconds    int       `json:"ttl_seconds,omitempty" validate:"gte=0"`
}

// TokenHandler handles scoped token requests
type TokenHandler struct {
	tokens *token.Service
	agents *agent.Service
	logger *zap.Logger
}

// NewTokenHandler creates a new TokenHandler
func NewTokenHandler(tokens *token.Service, agents *agent.Service, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, agents: agents, logger: logger}
}

// HandleExchange handles POST /api/v1/tokens/exchange
func (h *TokenHandler) HandleExchange(w http.ResponseWriter, r *http.Request) {
	var req ExchangeTokenRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	ag, err := h.agents.Get(req.OrgID, req.AgentID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	tok, err := h.tokens.Exchange(ag, req.ParentTokenID, req.ToolName, req.Scopes,
		time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, tok)
}

// HandleValidate handles GET /api/v1/tokens/{tokenID}
func (h *TokenHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := parseUUIDParam(w, r, "tokenID")
	if !ok {
		return
	}

	tok, err := h.tokens.Validate(tokenID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, tok)
}

// HandleRevoke handles DELETE /api/v1/tokens/{tokenID}
func (h *TokenHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := parseUUIDParam(w, r, "tokenID")
	if !ok {
		return
	}

	if err := h.tokens.Revoke(tokenID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}
