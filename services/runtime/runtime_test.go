package runtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/models"
	"github.com/agentgrid/control-plane/services"
	"github.com/agentgrid/control-plane/services/agent"
	"github.com/agentgrid/control-plane/services/audit"
	"github.com/agentgrid/control-plane/services/budget"
	"github.com/agentgrid/control-plane/services/llm"
	"github.com/agentgrid/control-plane/services/policy"
	"github.com/agentgrid/control-plane/services/proxy"
	"github.com/agentgrid/control-plane/services/tools"
	"github.com/agentgrid/control-plane/store"
)

type fixture struct {
	runtime  *ExecutionRuntime
	agents   *agent.Service
	policies *policy.Service
	budgets  *budget.Service
	auditLog *audit.Log
	orgID    uuid.UUID
	agent    *models.AgentIdentity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()

	agents := agent.NewService(store.NewMemoryStore[*models.AgentIdentity](), logger)
	policies := policy.NewService(store.NewMemoryStore[*models.Policy](), nil, logger)
	budgets := budget.NewService(
		store.NewMemoryStore[*models.Budget](),
		store.NewMemoryStore[*models.UsageReport](),
		logger)
	registry := tools.NewRegistry(logger)
	registry.Register(tools.NewEchoTool())
	auditLog := audit.NewLog(1000, logger)
	prx := proxy.NewProxy(policies, budgets, registry, auditLog, nil, logger)

	orgID := uuid.New()
	ag, err := agents.Register(orgID, "worker", models.RoleExecutor, nil)
	require.NoError(t, err)

	rt := NewExecutionRuntime(agents, policies, budgets, prx, registry,
		llm.NewMockProvider(), auditLog, nil, logger)

	return &fixture{
		runtime:  rt,
		agents:   agents,
		policies: policies,
		budgets:  budgets,
		auditLog: auditLog,
		orgID:    orgID,
		agent:    ag,
	}
}

func (f *fixture) setDefaults(t *testing.T) {
	t.Helper()
	_, err := f.policies.Set(f.orgID, nil, []models.ToolPermission{
		{ToolName: models.WildcardTool, Effect: models.EffectAllow},
	}, 10_000, 60)
	require.NoError(t, err)
	_, err = f.budgets.Set(f.orgID, &f.agent.ID, 100_000, 30)
	require.NoError(t, err)
}

func (f *fixture) request(task string) models.ExecutionRequest {
	return models.ExecutionRequest{OrgID: f.orgID, AgentID: f.agent.ID, Task: task}
}

func TestExecutionRuntime_Execute_Success(t *testing.T) {
	f := newFixture(t)
	f.setDefaults(t)

	resp, err := f.runtime.Execute(context.Background(), f.request("summarize the report"))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Result)
	assert.Positive(t, resp.TokensUsed)
	assert.NotEqual(t, uuid.Nil, resp.ExecutionID)

	// usage was deducted from the agent budget
	b, err := f.budgets.Get(f.orgID, &f.agent.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.TokensUsed, b.TokensUsed)

	// terminal audit entry
	chain := f.auditLog.DelegationChain(f.orgID, resp.ExecutionID)
	require.NotEmpty(t, chain)
	last := chain[len(chain)-1]
	assert.Equal(t, models.AuditActionExecutionComplete, last.Action)
	assert.Equal(t, models.AuditResultSuccess, last.Result)
}

func TestExecutionRuntime_Execute_WithToolCall(t *testing.T) {
	f := newFixture(t)
	f.setDefaults(t)

	resp, err := f.runtime.Execute(context.Background(), f.request("use tool echo to repeat this"))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "echo", resp.ToolCalls[0].ToolName)
	assert.True(t, resp.ToolCalls[0].Success)
	assert.Positive(t, resp.ToolCalls[0].TokensUsed)

	// the response total aggregates LLM and tool consumption, matching
	// what was deducted across both reports
	b, err := f.budgets.Get(f.orgID, &f.agent.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.TokensUsed, b.TokensUsed)
	assert.Greater(t, resp.TokensUsed, resp.ToolCalls[0].TokensUsed)

	// the delegation chain holds the tool call and the terminal entry
	chain := f.auditLog.DelegationChain(f.orgID, resp.ExecutionID)
	require.Len(t, chain, 2)
	assert.Equal(t, models.AuditActionToolCall, chain[0].Action)
	assert.Equal(t, models.AuditActionExecutionComplete, chain[1].Action)
	assert.Equal(t, resp.TokensUsed, chain[1].TokensUsed)
}

func TestExecutionRuntime_Execute_ToolFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t)
	// wildcard allow except the requested tool
	_, err := f.policies.Set(f.orgID, nil, []models.ToolPermission{
		{ToolName: models.WildcardTool, Effect: models.EffectAllow},
		{ToolName: "echo", Effect: models.EffectDeny},
	}, 10_000, 60)
	require.NoError(t, err)
	_, err = f.budgets.Set(f.orgID, &f.agent.ID, 100_000, 30)
	require.NoError(t, err)

	resp, err := f.runtime.Execute(context.Background(), f.request("use tool echo please"))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.Len(t, resp.ToolCalls, 1)
	assert.False(t, resp.ToolCalls[0].Success)
	assert.NotEmpty(t, resp.ToolCalls[0].Error)
}

func TestExecutionRuntime_Execute_UnknownAgent(t *testing.T) {
	f := newFixture(t)
	f.setDefaults(t)

	req := f.request("do something")
	req.AgentID = uuid.New()

	resp, err := f.runtime.Execute(context.Background(), req)
	require.Error(t, err)
	assert.True(t, services.IsNotFoundError(err))
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
}

func TestExecutionRuntime_Execute_GlobalFallback(t *testing.T) {
	t.Run("active agent from another org is admitted", func(t *testing.T) {
		f := newFixture(t)

		otherOrg := uuid.New()
		_, err := f.policies.Set(otherOrg, nil, []models.ToolPermission{
			{ToolName: models.WildcardTool, Effect: models.EffectAllow},
		}, 10_000, 60)
		require.NoError(t, err)

		req := f.request("do something")
		req.OrgID = otherOrg

		resp, err := f.runtime.Execute(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, resp.Success)
	})

	t.Run("inactive agent is not resolvable through the fallback", func(t *testing.T) {
		f := newFixture(t)

		otherOrg := uuid.New()
		_, err := f.policies.Set(otherOrg, nil, []models.ToolPermission{
			{ToolName: models.WildcardTool, Effect: models.EffectAllow},
		}, 10_000, 60)
		require.NoError(t, err)
		_, err = f.agents.Deactivate(f.orgID, f.agent.ID)
		require.NoError(t, err)

		req := f.request("do something")
		req.OrgID = otherOrg

		_, err = f.runtime.Execute(context.Background(), req)
		require.Error(t, err)
		assert.True(t, services.IsNotFoundError(err))
	})
}

func TestExecutionRuntime_Execute_InactiveAgent(t *testing.T) {
	f := newFixture(t)
	f.setDefaults(t)

	_, err := f.agents.Deactivate(f.orgID, f.agent.ID)
	require.NoError(t, err)

	_, err = f.runtime.Execute(context.Background(), f.request("do something"))
	require.Error(t, err)
	assert.True(t, services.IsNotFoundError(err))
}

func TestExecutionRuntime_Execute_NoPolicy(t *testing.T) {
	f := newFixture(t)
	// budget but no policy
	_, err := f.budgets.Set(f.orgID, &f.agent.ID, 100_000, 30)
	require.NoError(t, err)

	resp, err := f.runtime.Execute(context.Background(), f.request("do something"))
	require.Error(t, err)
	assert.True(t, services.IsNotFoundError(err))
	assert.False(t, resp.Success)

	// the failure is audited
	chain := f.auditLog.DelegationChain(f.orgID, resp.ExecutionID)
	require.Len(t, chain, 1)
	assert.Equal(t, models.AuditResultFailed, chain[0].Result)
}

func TestExecutionRuntime_Execute_BudgetExhausted(t *testing.T) {
	f := newFixture(t)
	_, err := f.policies.Set(f.orgID, nil, []models.ToolPermission{
		{ToolName: models.WildcardTool, Effect: models.EffectAllow},
	}, 10_000, 60)
	require.NoError(t, err)
	// budget smaller than the policy's token limit pre-flight
	_, err = f.budgets.Set(f.orgID, &f.agent.ID, 500, 30)
	require.NoError(t, err)

	_, err = f.runtime.Execute(context.Background(), f.request("do something"))
	require.Error(t, err)
	assert.True(t, services.IsBudgetError(err))
}
