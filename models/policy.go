package models

import (
	"time"

	"github.com/google/uuid"
)

// PolicyEffect is the outcome a ToolPermission assigns to a tool
type PolicyEffect string

const (
	EffectAllow PolicyEffect = "allow"
	EffectDeny  PolicyEffect = "deny"
)

// WildcardTool matches any tool name in a ToolPermission
const WildcardTool = "*"

// ToolPermission grants or denies a single tool (or "*" for all tools)
type ToolPermission struct {
	ToolName string       `json:"tool_name"`
	Effect   PolicyEffect `json:"effect"`
}

// Policy holds the tool permissions and resource limits for one scope:
// org-wide when AgentID is nil, agent-specific otherwise. At most one
// policy exists per scope; Set replaces.
type Policy struct {
	ID                      uuid.UUID        `json:"id" db:"id"`
	OrgID                   uuid.UUID        `json:"org_id" db:"org_id"`
	AgentID                 *uuid.UUID       `json:"agent_id,omitempty" db:"agent_id"` // nil = org-level
	Tools                   []ToolPermission `json:"tools" db:"tools"`
	TokenLimit              int64            `json:"token_limit" db:"token_limit"`
	ExecutionTimeoutSeconds int              `json:"execution_timeout_seconds" db:"execution_timeout_seconds"`
	CreatedAt               time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at" db:"updated_at"`
}

// DefaultTokenLimit is applied when a policy is set without an explicit limit
const DefaultTokenLimit int64 = 100_000

// DefaultExecutionTimeoutSeconds is applied when a policy is set without an explicit timeout
const DefaultExecutionTimeoutSeconds = 300

// NewPolicy creates a new Policy instance for the given scope
func NewPolicy(orgID uuid.UUID, agentID *uuid.UUID, tools []ToolPermission, tokenLimit int64, timeoutSeconds int) *Policy {
	now := time.Now().UTC()
	return &Policy{
		ID:                      uuid.New(),
		OrgID:                   orgID,
		AgentID:                 agentID,
		Tools:                   tools,
		TokenLimit:              tokenLimit,
		ExecutionTimeoutSeconds: timeoutSeconds,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

// IsOrgLevel reports whether the policy applies org-wide
func (p *Policy) IsOrgLevel() bool {
	return p.AgentID == nil
}

// PolicyDecision is the result of evaluating one (tool, estimated tokens)
// request against an effective policy. A denial is a successful evaluation
// whose answer is "no", not an error.
type PolicyDecision struct {
	Allowed         bool       `json:"allowed"`
	Reason          string     `json:"reason"`
	MatchedPolicyID *uuid.UUID `json:"matched_policy_id,omitempty"`
	EvaluatedAt     time.Time  `json:"evaluated_at"`
}

// Allow builds an allowing decision
func Allow(reason string, policyID uuid.UUID) PolicyDecision {
	return PolicyDecision{Allowed: true, Reason: reason, MatchedPolicyID: &policyID, EvaluatedAt: time.Now().UTC()}
}

// Deny builds a denying decision with no matched policy
func Deny(reason string) PolicyDecision {
	return PolicyDecision{Allowed: false, Reason: reason, EvaluatedAt: time.Now().UTC()}
}

// DenyMatched builds a denying decision attributed to a policy
func DenyMatched(reason string, policyID uuid.UUID) PolicyDecision {
	return PolicyDecision{Allowed: false, Reason: reason, MatchedPolicyID: &policyID, EvaluatedAt: time.Now().UTC()}
}
