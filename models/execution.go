package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionRequest asks the runtime to execute one task on behalf of an agent
type ExecutionRequest struct {
	OrgID       uuid.UUID         `json:"org_id"`
	AgentID     uuid.UUID         `json:"agent_id"`
	ExecutionID uuid.UUID         `json:"execution_id"`
	Task        string            `json:"task"`
	Context     map[string]string `json:"context,omitempty"`
}

// ToolCallOutcome is one tool invocation's result within an execution.
// Failed calls are collected alongside successes; one tool failing never
// aborts the rest of the execution.
type ToolCallOutcome struct {
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Result     string         `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	Success    bool           `json:"success"`
	TokensUsed int64          `json:"tokens_used"`
	LatencyMs  int64          `json:"latency_ms"`
}

// ExecutionResponse is the terminal result of one task execution
type ExecutionResponse struct {
	ExecutionID uuid.UUID         `json:"execution_id"`
	AgentID     uuid.UUID         `json:"agent_id"`
	OrgID       uuid.UUID         `json:"org_id"`
	Result      string            `json:"result,omitempty"`
	TokensUsed  int64             `json:"tokens_used"`
	ToolCalls   []ToolCallOutcome `json:"tool_calls,omitempty"`
	DurationMs  int64             `json:"duration_ms"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	CompletedAt time.Time         `json:"completed_at"`
}
