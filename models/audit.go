package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction is the kind of governance event being recorded
type AuditAction string

const (
	AuditActionToolCall          AuditAction = "tool_call"
	AuditActionPolicyCheck       AuditAction = "policy_check"
	AuditActionBudgetCheck       AuditAction = "budget_check"
	AuditActionExecutionComplete AuditAction = "execution_complete"
	AuditActionTokenExchange     AuditAction = "token_exchange"
)

// AuditResult is the terminal outcome recorded for an audited action
type AuditResult string

const (
	AuditResultAllowed  AuditResult = "allowed"
	AuditResultDenied   AuditResult = "denied"
	AuditResultExecuted AuditResult = "executed"
	AuditResultFailed   AuditResult = "failed"
	AuditResultSuccess  AuditResult = "success"
)

// AuditEntry is one immutable record in the audit trail. Entries sharing
// an ExecutionID form the delegation chain (user -> agent -> tools) for
// that execution. Parameters holds parameter names mapped to their value
// types; raw values are never recorded.
type AuditEntry struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	OrgID           uuid.UUID         `json:"org_id" db:"org_id"`
	AgentID         uuid.UUID         `json:"agent_id" db:"agent_id"`
	DelegatedUserID *uuid.UUID        `json:"delegated_user_id,omitempty" db:"delegated_user_id"`
	ExecutionID     uuid.UUID         `json:"execution_id" db:"execution_id"`
	Action          AuditAction       `json:"action" db:"action"`
	ToolName        *string           `json:"tool_name,omitempty" db:"tool_name"`
	Parameters      map[string]string `json:"parameters,omitempty" db:"parameters"`
	Result          AuditResult       `json:"result" db:"result"`
	Reason          *string           `json:"reason,omitempty" db:"reason"`
	LatencyMs       int64             `json:"latency_ms" db:"latency_ms"`
	TokensUsed      int64             `json:"tokens_used" db:"tokens_used"`
	Timestamp       time.Time         `json:"timestamp" db:"timestamp"`
}

// NewAuditEntry creates a new AuditEntry instance
func NewAuditEntry(orgID, agentID, executionID uuid.UUID, action AuditAction, result AuditResult) *AuditEntry {
	return &AuditEntry{
		ID:          uuid.New(),
		OrgID:       orgID,
		AgentID:     agentID,
		ExecutionID: executionID,
		Action:      action,
		Result:      result,
		Timestamp:   time.Now().UTC(),
	}
}

// WithTool sets the tool name
func (e *AuditEntry) WithTool(toolName string) *AuditEntry {
	e.ToolName = &toolName
	return e
}

// WithDelegatedUser sets the delegated human user
func (e *AuditEntry) WithDelegatedUser(userID *uuid.UUID) *AuditEntry {
	e.DelegatedUserID = userID
	return e
}

// WithReason sets the human-readable reason
func (e *AuditEntry) WithReason(reason string) *AuditEntry {
	e.Reason = &reason
	return e
}

// WithParameters records parameter names and value types only
func (e *AuditEntry) WithParameters(params map[string]string) *AuditEntry {
	e.Parameters = params
	return e
}

// WithMetrics sets latency and token consumption
func (e *AuditEntry) WithMetrics(latencyMs, tokensUsed int64) *AuditEntry {
	e.LatencyMs = latencyMs
	e.TokensUsed = tokensUsed
	return e
}
