package models

import (
	"time"

	"github.com/google/uuid"
)

// Budget tracks token consumption against a limit for one scope: org-wide
// when AgentID is nil, per-agent otherwise. TokensUsed only grows between
// resets; the pre-flight check is advisory, so TokensUsed may exceed
// TokenLimit under concurrent load (see TokensRemaining clamping).
type Budget struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	OrgID           uuid.UUID  `json:"org_id" db:"org_id"`
	AgentID         *uuid.UUID `json:"agent_id,omitempty" db:"agent_id"` // nil = org-level
	TokenLimit      int64      `json:"token_limit" db:"token_limit"`
	TokensUsed      int64      `json:"tokens_used" db:"tokens_used"`
	ToolInvocations int64      `json:"tool_invocations" db:"tool_invocations"`
	ResetPeriodDays int        `json:"reset_period_days" db:"reset_period_days"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	LastResetAt     time.Time  `json:"last_reset_at" db:"last_reset_at"`
}

// DefaultBudgetTokenLimit is applied when a budget is set without an explicit limit
const DefaultBudgetTokenLimit int64 = 1_000_000

// NewBudget creates a new Budget with zero usage
func NewBudget(orgID uuid.UUID, agentID *uuid.UUID, tokenLimit int64, resetPeriodDays int) *Budget {
	now := time.Now().UTC()
	return &Budget{
		ID:              uuid.New(),
		OrgID:           orgID,
		AgentID:         agentID,
		TokenLimit:      tokenLimit,
		ResetPeriodDays: resetPeriodDays,
		CreatedAt:       now,
		LastResetAt:     now,
	}
}

// TokensRemaining returns limit minus used, clamped at zero
func (b *Budget) TokensRemaining() int64 {
	remaining := b.TokenLimit - b.TokensUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExhausted reports whether the budget has no tokens left
func (b *Budget) IsExhausted() bool {
	return b.TokensUsed >= b.TokenLimit
}

// ResetDue reports whether the reset period has elapsed since the last
// reset. A zero ResetPeriodDays means the budget never resets.
func (b *Budget) ResetDue() bool {
	if b.ResetPeriodDays <= 0 {
		return false
	}
	return time.Since(b.LastResetAt) >= time.Duration(b.ResetPeriodDays)*24*time.Hour
}

// UsageReport records the actual consumption of one reported action.
// Immutable once created.
type UsageReport struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	OrgID           uuid.UUID  `json:"org_id" db:"org_id"`
	AgentID         uuid.UUID  `json:"agent_id" db:"agent_id"`
	ExecutionID     uuid.UUID  `json:"execution_id" db:"execution_id"`
	TokensUsed      int64      `json:"tokens_used" db:"tokens_used"`
	ToolInvocations int64      `json:"tool_invocations" db:"tool_invocations"`
	DurationMs      int64      `json:"duration_ms" db:"duration_ms"`
	ToolName        *string    `json:"tool_name,omitempty" db:"tool_name"`
	Timestamp       time.Time  `json:"timestamp" db:"timestamp"`
}

// NewUsageReport creates a new UsageReport instance
func NewUsageReport(orgID, agentID, executionID uuid.UUID, tokensUsed int64) *UsageReport {
	return &UsageReport{
		ID:          uuid.New(),
		OrgID:       orgID,
		AgentID:     agentID,
		ExecutionID: executionID,
		TokensUsed:  tokensUsed,
		Timestamp:   time.Now().UTC(),
	}
}

// BudgetDecision is the result of a pre-flight budget check
type BudgetDecision struct {
	Allowed         bool      `json:"allowed"`
	Reason          string    `json:"reason"`
	RemainingTokens int64     `json:"remaining_tokens"`
	CheckedAt       time.Time `json:"checked_at"`
}

// BudgetAllow builds an allowing decision with the given headroom
func BudgetAllow(remaining int64) BudgetDecision {
	return BudgetDecision{Allowed: true, Reason: "within budget", RemainingTokens: remaining, CheckedAt: time.Now().UTC()}
}

// BudgetDeny builds a denying decision
func BudgetDeny(reason string, remaining int64) BudgetDecision {
	return BudgetDecision{Allowed: false, Reason: reason, RemainingTokens: remaining, CheckedAt: time.Now().UTC()}
}

// UsageQuery filters stored usage reports
type UsageQuery struct {
	OrgID     uuid.UUID
	AgentID   *uuid.UUID
	StartTime *time.Time
	EndTime   *time.Time
}

// UsageSummary aggregates the reports matched by a UsageQuery
type UsageSummary struct {
	OrgID                    uuid.UUID  `json:"org_id"`
	AgentID                  *uuid.UUID `json:"agent_id,omitempty"`
	TotalTokens              int64      `json:"total_tokens"`
	TotalToolInvocations     int64      `json:"total_tool_invocations"`
	TotalExecutionDurationMs int64      `json:"total_execution_duration_ms"`
	ReportCount              int        `json:"report_count"`
}
