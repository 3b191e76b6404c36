// Package runtime orchestrates one governed task execution end to end:
// identity validation, policy and budget pre-flight, the LLM call, tool
// invocations through the authorization proxy, usage accounting, and the
// terminal audit entry.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/models"
	"github.com/agentgrid/control-plane/observability"
	"github.com/agentgrid/control-plane/services"
	"github.com/agentgrid/control-plane/services/agent"
	"github.com/agentgrid/control-plane/services/audit"
	"github.com/agentgrid/control-plane/services/budget"
	"github.com/agentgrid/control-plane/services/llm"
	"github.com/agentgrid/control-plane/services/policy"
	"github.com/agentgrid/control-plane/services/proxy"
	"github.com/agentgrid/control-plane/services/tools"
)

// ExecutionRuntime drives governed agent executions
type ExecutionRuntime struct {
	agents   *agent.Service
	policies *policy.Service
	budgets  *budget.Service
	proxy    *proxy.Proxy
	registry *tools.Registry
	provider llm.Provider
	auditLog *audit.Log
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewExecutionRuntime creates a runtime. metrics may be nil.
func NewExecutionRuntime(
	agents *agent.Service,
	policies *policy.Service,
	budgets *budget.Service,
	prx *proxy.Proxy,
	registry *tools.Registry,
	provider llm.Provider,
	auditLog *audit.Log,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ExecutionRuntime {
	return &ExecutionRuntime{
		agents:   agents,
		policies: policies,
		budgets:  budgets,
		proxy:    prx,
		registry: registry,
		provider: provider,
		auditLog: auditLog,
		metrics:  metrics,
		logger:   logger,
	}
}

// Execute runs one task for an agent under full governance. A zero
// ExecutionID is replaced with a fresh one. Governance denials and
// infrastructure failures return an error alongside a response carrying
// the failure; tool-level failures are collected into the response
// without failing the execution.
func (r *ExecutionRuntime) Execute(ctx context.Context, req models.ExecutionRequest) (*models.ExecutionResponse, error) {
	start := time.Now()
	if req.ExecutionID == uuid.Nil {
		req.ExecutionID = uuid.New()
	}

	ag, err := r.resolveAgent(req.OrgID, req.AgentID)
	if err != nil {
		return r.fail(req, start, err)
	}

	effective, err := r.policies.GetEffective(req.OrgID, req.AgentID)
	if err != nil {
		return r.fail(req, start, err)
	}
	if effective == nil {
		return r.fail(req, start, services.ErrPolicyNotFound)
	}

	decision, err := r.budgets.Check(req.OrgID, req.AgentID, effective.TokenLimit)
	if err != nil {
		return r.fail(req, start, err)
	}
	if !decision.Allowed {
		return r.fail(req, start, services.WrapError(services.ErrorTypeBudget, decision.Reason, nil))
	}

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(effective.ExecutionTimeoutSeconds)*time.Second)
	defer cancel()

	completion, err := r.provider.Complete(execCtx, llm.Request{
		Task:           req.Task,
		Context:        req.Context,
		AvailableTools: r.registry.List(),
		MaxTokens:      effective.TokenLimit,
	})
	if err != nil {
		return r.fail(req, start, services.WrapExternal("LLM completion failed", err))
	}

	outcomes, toolTokens := r.runToolCalls(execCtx, ag, req, completion.ToolCalls)

	// tool call tokens are deducted inside the proxy; only the LLM's own
	// consumption is reported here. The response and the terminal audit
	// entry carry the aggregate.
	totalTokens := completion.TokensUsed + toolTokens
	report := models.NewUsageReport(req.OrgID, req.AgentID, req.ExecutionID, completion.TokensUsed)
	report.DurationMs = time.Since(start).Milliseconds()
	if _, err := r.budgets.ReportUsage(report); err != nil {
		r.logger.Error("failed to report execution usage",
			zap.String("execution_id", req.ExecutionID.String()),
			zap.Error(err))
	}

	resp := &models.ExecutionResponse{
		ExecutionID: req.ExecutionID,
		AgentID:     req.AgentID,
		OrgID:       req.OrgID,
		Result:      completion.Content,
		TokensUsed:  totalTokens,
		ToolCalls:   outcomes,
		DurationMs:  time.Since(start).Milliseconds(),
		Success:     true,
		CompletedAt: time.Now().UTC(),
	}

	r.auditLog.Append(models.NewAuditEntry(req.OrgID, req.AgentID, req.ExecutionID,
		models.AuditActionExecutionComplete, models.AuditResultSuccess).
		WithDelegatedUser(ag.DelegatedUserID).
		WithMetrics(resp.DurationMs, totalTokens))
	if r.metrics != nil {
		r.metrics.ExecutionsTotal.WithLabelValues("success").Inc()
	}

	r.logger.Info("execution complete",
		zap.String("execution_id", req.ExecutionID.String()),
		zap.String("agent_id", req.AgentID.String()),
		zap.Int64("tokens_used", totalTokens),
		zap.Int("tool_calls", len(outcomes)))
	return resp, nil
}

// resolveAgent looks the agent up within the org, falling back to a
// global lookup. The fallback is an internal convenience path, never
// exposed to external callers directly. Only active agents may execute.
func (r *ExecutionRuntime) resolveAgent(orgID, agentID uuid.UUID) (*models.AgentIdentity, error) {
	ag, err := r.agents.Get(orgID, agentID)
	if err != nil {
		if !services.IsNotFoundError(err) {
			return nil, err
		}
		global, gerr := r.agents.GetByID(agentID)
		if gerr != nil || !global.Active {
			return nil, services.ErrAgentNotFound
		}
		r.logger.Debug("agent resolved via global lookup",
			zap.String("agent_id", agentID.String()),
			zap.String("home_org_id", global.OrgID.String()))
		return global, nil
	}
	if !ag.Active {
		return nil, services.ErrAgentNotFound
	}
	return ag, nil
}

// runToolCalls invokes each requested tool through the proxy in order.
// A failed call is recorded and the remaining calls still run. The
// second return value is the total tokens the proxy charged.
func (r *ExecutionRuntime) runToolCalls(ctx context.Context, ag *models.AgentIdentity, req models.ExecutionRequest, calls []llm.ToolCall) ([]models.ToolCallOutcome, int64) {
	outcomes := make([]models.ToolCallOutcome, 0, len(calls))
	var toolTokens int64
	for _, call := range calls {
		result, err := r.proxy.Execute(ctx, proxy.ToolCallRequest{
			OrgID:           req.OrgID,
			AgentID:         req.AgentID,
			DelegatedUserID: ag.DelegatedUserID,
			ExecutionID:     req.ExecutionID,
			ToolName:        call.ToolName,
			Parameters:      call.Parameters,
			EstimatedTokens: estimateToolTokens(call),
		})

		outcome := models.ToolCallOutcome{ToolName: call.ToolName, Parameters: call.Parameters}
		if err != nil {
			outcome.Error = err.Error()
			if result != nil {
				outcome.TokensUsed = result.TokensUsed
				outcome.LatencyMs = result.LatencyMs
			}
		} else {
			outcome.Success = true
			outcome.Result = renderResult(result.Result)
			outcome.TokensUsed = result.TokensUsed
			outcome.LatencyMs = result.LatencyMs
		}
		toolTokens += outcome.TokensUsed
		outcomes = append(outcomes, outcome)
	}
	return outcomes, toolTokens
}

// fail records a failed execution with its terminal audit entry
func (r *ExecutionRuntime) fail(req models.ExecutionRequest, start time.Time, cause error) (*models.ExecutionResponse, error) {
	durationMs := time.Since(start).Milliseconds()

	r.auditLog.Append(models.NewAuditEntry(req.OrgID, req.AgentID, req.ExecutionID,
		models.AuditActionExecutionComplete, models.AuditResultFailed).
		WithReason(cause.Error()).
		WithMetrics(durationMs, 0))
	if r.metrics != nil {
		r.metrics.ExecutionsTotal.WithLabelValues("failed").Inc()
	}

	r.logger.Warn("execution failed",
		zap.String("execution_id", req.ExecutionID.String()),
		zap.String("agent_id", req.AgentID.String()),
		zap.Error(cause))

	return &models.ExecutionResponse{
		ExecutionID: req.ExecutionID,
		AgentID:     req.AgentID,
		OrgID:       req.OrgID,
		DurationMs:  durationMs,
		Success:     false,
		Error:       cause.Error(),
		CompletedAt: time.Now().UTC(),
	}, cause
}

// estimateToolTokens approximates a tool call's cost from the size of
// its serialized parameters.
func estimateToolTokens(call llm.ToolCall) int64 {
	data, err := json.Marshal(call.Parameters)
	if err != nil {
		return 100
	}
	return int64(len(data)/4 + 25)
}

func renderResult(result interface{}) string {
	if result == nil {
		return ""
	}
	if s, ok := result.(string); ok {
		return s
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}
