package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/models"
	"github.com/agentgrid/control-plane/services/budget"
	"github.com/agentgrid/control-plane/utils"
)

// SetBudgetRequest is the body for setting an org- or agent-level budget
type SetBudgetRequest struct {
	TokenLimit      int64 `json:"token_limit" validate:"gte=0"`
	ResetPeriodDays int   `json:"reset_period_days" validate:"gte=0"`
}

// CheckBudgetRequest is the body for a budget pre-flight check
type CheckBudgetRequest struct {
	EstimatedTokens int64 `json:"estimated_tokens" validate:"gte=0"`
}

// ReportUsageRequest is the body for reporting actual consumption
type ReportUsageRequest struct {
	ExecutionID     uuid.UUID `json:"execution_id" validate:"required"`
	TokensUsed      int64     `json:"tokens_used"`
	ToolInvocations int64     `json:"tool_invocations"`
	DurationMs      int64     `json:"duration_ms" validate:"gte=0"`
	ToolName        *string   `json:"tool_name,omitempty"`
}

// BudgetHandler handles budget management requests
type BudgetHandler struct {
	budgets *budget.Service
	logger  *zap.Logger
}

// NewBudgetHandler creates a new BudgetHandler
func NewBudgetHandler(budgets *budget.Service, logger *zap.Logger) *BudgetHandler {
	return &BudgetHandler{budgets: budgets, logger: logger}
}

func (h *BudgetHandler) setBudget(w http.ResponseWriter, r *http.Request, orgID uuid.UUID, agentID *uuid.UUID) {
	var req SetBudgetRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	b, err := h.budgets.Set(orgID, agentID, req.TokenLimit, req.ResetPeriodDays)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, b)
}

// HandleSetOrgBudget handles PUT /api/v1/organizations/{orgID}/budget
func (h *BudgetHandler) HandleSetOrgBudget(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}
	h.setBudget(w, r, orgID, nil)
}

// HandleSetAgentBudget handles PUT /api/v1/organizations/{orgID}/agents/{agentID}/budget
func (h *BudgetHandler) HandleSetAgentBudget(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}
	agentID, ok := parseUUIDParam(w, r, "agentID")
	if !ok {
		return
	}
	h.setBudget(w, r, orgID, &agentID)
}

// HandleGetOrgBudget handles GET /api/v1/organizations/{orgID}/budget
func (h *BudgetHandler) HandleGetOrgBudget(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}

	b, err := h.budgets.Get(orgID, nil)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if b == nil {
		_ = utils.WriteNotFound(w, "no budget configured")
		return
	}
	_ = utils.WriteOK(w, b)
}

// HandleGetAgentBudget handles GET /api/v1/organizations/{orgID}/agents/{agentID}/budget
func (h *BudgetHandler) HandleGetAgentBudget(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}
	agentID, ok := parseUUIDParam(w, r, "agentID")
	if !ok {
		return
	}

	b, err := h.budgets.Get(orgID, &agentID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if b == nil {
		_ = utils.WriteNotFound(w, "no budget configured")
		return
	}
	_ = utils.WriteOK(w, b)
}

// HandleCheck handles POST /api/v1/organizations/{orgID}/agents/{agentID}/budget/check
func (h *BudgetHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}
	agentID, ok := parseUUIDParam(w, r, "agentID")
	if !ok {
		return
	}

	var req CheckBudgetRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	decision, err := h.budgets.Check(orgID, agentID, req.EstimatedTokens)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, decision)
}

// HandleReportUsage handles POST /api/v1/organizations/{orgID}/agents/{agentID}/usage
func (h *BudgetHandler) HandleReportUsage(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}
	agentID, ok := parseUUIDParam(w, r, "agentID")
	if !ok {
		return
	}

	var req ReportUsageRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	report := models.NewUsageReport(orgID, agentID, req.ExecutionID, req.TokensUsed)
	report.ToolInvocations = req.ToolInvocations
	report.DurationMs = req.DurationMs
	report.ToolName = req.ToolName

	remaining, err := h.budgets.ReportUsage(report)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, map[string]interface{}{
		"report_id":        report.ID,
		"remaining_tokens": remaining,
	})
}

// HandleGetUsage handles GET /api/v1/organizations/{orgID}/usage with
// optional agent_id, start_time and end_time query parameters.
func (h *BudgetHandler) HandleGetUsage(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}

	query := models.UsageQuery{OrgID: orgID}
	if raw := r.URL.Query().Get("agent_id"); raw != "" {
		agentID, err := uuid.Parse(raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "invalid agent_id", nil)
			return
		}
		query.AgentID = &agentID
	}
	if raw := r.URL.Query().Get("start_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "invalid start_time, expected RFC3339", nil)
			return
		}
		query.StartTime = &t
	}
	if raw := r.URL.Query().Get("end_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "invalid end_time, expected RFC3339", nil)
			return
		}
		query.EndTime = &t
	}

	summary, err := h.budgets.GetUsage(query)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, summary)
}
