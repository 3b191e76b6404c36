package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/models"
	"github.com/agentgrid/control-plane/services"
	"github.com/agentgrid/control-plane/services/proxy"
	"github.com/agentgrid/control-plane/services/runtime"
	"github.com/agentgrid/control-plane/utils"
)

// ExecuteRequest is the body for running a task through the runtime
type ExecuteRequest struct {
	OrgID   uuid.UUID         `json:"org_id" validate:"required"`
	AgentID uuid.UUID         `json:"agent_id" validate:"required"`
	Task    string            `json:"task" validate:"required"`
	Context map[string]string `json:"context,omitempty"`
}

// ToolCallRequest is the body for a direct proxied tool call
type ToolCallRequest struct {
	OrgID           uuid.UUID              `json:"org_id" validate:"required"`
	AgentID         uuid.UUID              `json:"agent_id" validate:"required"`
	ExecutionID     *uuid.UUID             `json:"execution_id,omitempty"`
	ToolName        string                 `json:"tool_name" validate:"required"`
	Parameters      map[string]interface{} `json:"parameters,omitempty"`
	EstimatedTokens int64                  `json:"estimated_tokens" validate:"gte=0"`
}

// ExecutionHandler handles task execution and direct tool calls
type ExecutionHandler struct {
	runtime *runtime.ExecutionRuntime
	proxy   *proxy.Proxy
	logger  *zap.Logger
}

// NewExecutionHandler creates a new ExecutionHandler
func NewExecutionHandler(rt *runtime.ExecutionRuntime, prx *proxy.Proxy, logger *zap.Logger) *ExecutionHandler {
	return &ExecutionHandler{runtime: rt, proxy: prx, logger: logger}
}

// HandleExecute handles POST /api/v1/executions. Failed executions
// return 200 with the failure captured in the body when the failure is a
// governance denial; infrastructure errors map to their usual status.
func (h *ExecutionHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	resp, err := h.runtime.Execute(r.Context(), models.ExecutionRequest{
		OrgID:   req.OrgID,
		AgentID: req.AgentID,
		Task:    req.Task,
		Context: req.Context,
	})
	if err != nil && resp == nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, resp)
}

// HandleToolCall handles POST /api/v1/tool-calls
func (h *ExecutionHandler) HandleToolCall(w http.ResponseWriter, r *http.Request) {
	var req ToolCallRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	executionID := uuid.New()
	if req.ExecutionID != nil {
		executionID = *req.ExecutionID
	}

	result, err := h.proxy.Execute(r.Context(), proxy.ToolCallRequest{
		OrgID:           req.OrgID,
		AgentID:         req.AgentID,
		ExecutionID:     executionID,
		ToolName:        req.ToolName,
		Parameters:      req.Parameters,
		EstimatedTokens: req.EstimatedTokens,
	})
	if err != nil {
		// denials carry a result describing the decision
		if result != nil && (services.IsPolicyDeniedError(err) || services.IsBudgetError(err)) {
			status := http.StatusForbidden
			if services.IsBudgetError(err) {
				status = http.StatusTooManyRequests
			}
			_ = utils.WriteJSON(w, status, result)
			return
		}
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, result)
}
