// Package proxy implements the tool-call authorization proxy: the single
// chokepoint every tool invocation passes through. The pipeline is
// parameter validation, policy evaluation, budget pre-flight, tool
// lookup, contained invocation, usage reporting, and audit. Every
// terminal path leaves exactly one audit entry.
package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/models"
	"github.com/agentgrid/control-plane/observability"
	"github.com/agentgrid/control-plane/services"
	"github.com/agentgrid/control-plane/services/audit"
	"github.com/agentgrid/control-plane/services/budget"
	"github.com/agentgrid/control-plane/services/policy"
	"github.com/agentgrid/control-plane/services/tools"
)

const (
	// MaxParameters bounds how many parameters one tool call may carry
	MaxParameters = 50
	// MaxParameterKeyLength bounds parameter key length
	MaxParameterKeyLength = 256
	// MaxParameterValueLength bounds string parameter value length
	MaxParameterValueLength = 10_000
)

// ToolCallRequest is one tool invocation arriving at the proxy
type ToolCallRequest struct {
	OrgID           uuid.UUID              `json:"org_id"`
	AgentID         uuid.UUID              `json:"agent_id"`
	DelegatedUserID *uuid.UUID             `json:"delegated_user_id,omitempty"`
	ExecutionID     uuid.UUID              `json:"execution_id"`
	ToolName        string                 `json:"tool_name"`
	Parameters      map[string]interface{} `json:"parameters,omitempty"`
	EstimatedTokens int64                  `json:"estimated_tokens"`
}

// ToolCallResult is the proxy's answer for one tool call
type ToolCallResult struct {
	Allowed    bool        `json:"allowed"`
	Result     interface{} `json:"result,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	TokensUsed int64       `json:"tokens_used"`
	LatencyMs  int64       `json:"latency_ms"`
}

// Proxy authorizes and executes tool calls on behalf of agents
type Proxy struct {
	policies *policy.Service
	budgets  *budget.Service
	registry *tools.Registry
	auditLog *audit.Log
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewProxy creates a new authorization proxy. metrics may be nil.
func NewProxy(policies *policy.Service, budgets *budget.Service, registry *tools.Registry, auditLog *audit.Log, metrics *observability.Metrics, logger *zap.Logger) *Proxy {
	return &Proxy{
		policies: policies,
		budgets:  budgets,
		registry: registry,
		auditLog: auditLog,
		metrics:  metrics,
		logger:   logger,
	}
}

// Execute runs the full authorization pipeline for one tool call
func (p *Proxy) Execute(ctx context.Context, req ToolCallRequest) (*ToolCallResult, error) {
	start := time.Now()

	if err := validateParameters(req.Parameters); err != nil {
		p.deny(req, models.AuditResultDenied, err.Error(), start)
		return nil, err
	}

	decision, err := p.policies.Evaluate(req.OrgID, req.AgentID, req.ToolName, req.EstimatedTokens)
	if err != nil {
		p.deny(req, models.AuditResultFailed, err.Error(), start)
		return nil, err
	}
	if !decision.Allowed {
		if p.metrics != nil {
			p.metrics.PolicyDenialsTotal.WithLabelValues(req.ToolName).Inc()
		}
		p.deny(req, models.AuditResultDenied, decision.Reason, start)
		return &ToolCallResult{Allowed: false, Reason: decision.Reason, LatencyMs: time.Since(start).Milliseconds()},
			services.WrapError(services.ErrorTypePolicyDenied, decision.Reason, nil)
	}

	budgetDecision, err := p.budgets.Check(req.OrgID, req.AgentID, req.EstimatedTokens)
	if err != nil {
		p.deny(req, models.AuditResultFailed, err.Error(), start)
		return nil, err
	}
	if !budgetDecision.Allowed {
		if p.metrics != nil {
			p.metrics.BudgetDenialsTotal.WithLabelValues(budgetLevel(budgetDecision.Reason)).Inc()
		}
		p.deny(req, models.AuditResultDenied, budgetDecision.Reason, start)
		return &ToolCallResult{Allowed: false, Reason: budgetDecision.Reason, LatencyMs: time.Since(start).Milliseconds()},
			services.WrapError(services.ErrorTypeBudget, budgetDecision.Reason, nil)
	}

	tool, err := p.registry.Get(req.ToolName)
	if err != nil {
		p.deny(req, models.AuditResultFailed, fmt.Sprintf("tool %q not registered", req.ToolName), start)
		return nil, err
	}

	result, invokeErr := p.invoke(ctx, tool, req.Parameters)
	latency := time.Since(start)

	if invokeErr != nil {
		p.audit(req, models.AuditActionToolCall, models.AuditResultFailed, invokeErr.Error(), latency, 0)
		p.observe(req.ToolName, "failed", latency)
		return &ToolCallResult{Allowed: true, Reason: invokeErr.Error(), LatencyMs: latency.Milliseconds()},
			services.WrapError(services.ErrorTypeToolExecution, "tool execution failed", invokeErr)
	}

	// usage is charged only after a successful invocation
	tokensUsed := req.EstimatedTokens
	report := models.NewUsageReport(req.OrgID, req.AgentID, req.ExecutionID, tokensUsed)
	report.ToolInvocations = 1
	report.DurationMs = latency.Milliseconds()
	report.ToolName = &req.ToolName
	if _, reportErr := p.budgets.ReportUsage(report); reportErr != nil {
		p.logger.Error("failed to report tool call usage",
			zap.String("execution_id", req.ExecutionID.String()),
			zap.Error(reportErr))
	} else if p.metrics != nil {
		p.metrics.TokensDeducted.WithLabelValues("agent").Add(float64(tokensUsed))
	}

	p.audit(req, models.AuditActionToolCall, models.AuditResultExecuted, "", latency, tokensUsed)
	p.observe(req.ToolName, "executed", latency)

	return &ToolCallResult{
		Allowed:    true,
		Result:     result,
		TokensUsed: tokensUsed,
		LatencyMs:  latency.Milliseconds(),
	}, nil
}

// invoke runs the tool with panics contained as errors
func (p *Proxy) invoke(ctx context.Context, tool tools.Tool, params map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("tool panicked", zap.String("tool_name", tool.Name()), zap.Any("panic", r))
			result = nil
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return tool.Execute(ctx, params)
}

func (p *Proxy) deny(req ToolCallRequest, result models.AuditResult, reason string, start time.Time) {
	latency := time.Since(start)
	p.audit(req, models.AuditActionToolCall, result, reason, latency, 0)
	p.observe(req.ToolName, string(result), latency)
}

func (p *Proxy) audit(req ToolCallRequest, action models.AuditAction, result models.AuditResult, reason string, latency time.Duration, tokens int64) {
	entry := models.NewAuditEntry(req.OrgID, req.AgentID, req.ExecutionID, action, result).
		WithTool(req.ToolName).
		WithDelegatedUser(req.DelegatedUserID).
		WithParameters(parameterTypes(req.Parameters)).
		WithMetrics(latency.Milliseconds(), tokens)
	if reason != "" {
		entry = entry.WithReason(reason)
	}
	p.auditLog.Append(entry)
}

func (p *Proxy) observe(toolName, result string, latency time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.ToolCallsTotal.WithLabelValues(toolName, result).Inc()
	p.metrics.ToolCallDuration.WithLabelValues(toolName, result).Observe(latency.Seconds())
}

// validateParameters enforces the structural bounds on tool call input
func validateParameters(params map[string]interface{}) error {
	if len(params) > MaxParameters {
		return services.WrapValidation(
			fmt.Sprintf("too many parameters: %d exceeds maximum of %d", len(params), MaxParameters), nil)
	}
	for key, value := range params {
		if len(key) > MaxParameterKeyLength {
			return services.WrapValidation(
				fmt.Sprintf("parameter key exceeds maximum length of %d", MaxParameterKeyLength), nil)
		}
		if s, ok := value.(string); ok && len(s) > MaxParameterValueLength {
			return services.WrapValidation(
				fmt.Sprintf("parameter %q value exceeds maximum length of %d", key, MaxParameterValueLength), nil)
		}
	}
	return nil
}

// parameterTypes maps parameter names to the type of their value. Raw
// values never enter the audit trail.
func parameterTypes(params map[string]interface{}) map[string]string {
	if len(params) == 0 {
		return nil
	}
	types := make(map[string]string, len(params))
	for key, value := range params {
		types[key] = fmt.Sprintf("%T", value)
	}
	return types
}

// budgetLevel extracts the failing budget level from a denial reason
func budgetLevel(reason string) string {
	if len(reason) >= 5 && reason[:5] == "agent" {
		return "agent"
	}
	return "org"
}
