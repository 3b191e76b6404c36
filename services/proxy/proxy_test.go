package proxy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/models"
	"github.com/agentgrid/control-plane/services"
	"github.com/agentgrid/control-plane/services/audit"
	"github.com/agentgrid/control-plane/services/budget"
	"github.com/agentgrid/control-plane/services/policy"
	"github.com/agentgrid/control-plane/services/tools"
	"github.com/agentgrid/control-plane/store"
)

// stubTool returns a fixed result, error, or panic
type stubTool struct {
	name   string
	result interface{}
	err    error
	panics bool
}

func (t *stubTool) Name() string                   { return t.name }
func (t *stubTool) Description() string            { return "stub" }
func (t *stubTool) Schema() map[string]interface{} { return nil }

func (t *stubTool) Execute(context.Context, map[string]interface{}) (interface{}, error) {
	if t.panics {
		panic("boom")
	}
	return t.result, t.err
}

type fixture struct {
	proxy    *Proxy
	policies *policy.Service
	budgets  *budget.Service
	auditLog *audit.Log
	orgID    uuid.UUID
	agentID  uuid.UUID
}

func newFixture(t *testing.T, registered ...tools.Tool) *fixture {
	t.Helper()
	logger := zap.NewNop()

	policies := policy.NewService(store.NewMemoryStore[*models.Policy](), nil, logger)
	budgets := budget.NewService(
		store.NewMemoryStore[*models.Budget](),
		store.NewMemoryStore[*models.UsageReport](),
		logger)
	registry := tools.NewRegistry(logger)
	for _, tool := range registered {
		registry.Register(tool)
	}
	auditLog := audit.NewLog(100, logger)

	f := &fixture{
		proxy:    NewProxy(policies, budgets, registry, auditLog, nil, logger),
		policies: policies,
		budgets:  budgets,
		auditLog: auditLog,
		orgID:    uuid.New(),
		agentID:  uuid.New(),
	}

	_, err := policies.Set(f.orgID, nil, []models.ToolPermission{
		{ToolName: models.WildcardTool, Effect: models.EffectAllow},
		{ToolName: "forbidden", Effect: models.EffectDeny},
	}, 10_000, 60)
	require.NoError(t, err)
	_, err = budgets.Set(f.orgID, &f.agentID, 5_000, 30)
	require.NoError(t, err)

	return f
}

func (f *fixture) request(tool string, tokens int64) ToolCallRequest {
	return ToolCallRequest{
		OrgID:           f.orgID,
		AgentID:         f.agentID,
		ExecutionID:     uuid.New(),
		ToolName:        tool,
		Parameters:      map[string]interface{}{"message": "hi"},
		EstimatedTokens: tokens,
	}
}

func TestProxy_Execute_Success(t *testing.T) {
	f := newFixture(t, &stubTool{name: "search", result: "ok"})

	result, err := f.proxy.Execute(context.Background(), f.request("search", 100))
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, "ok", result.Result)
	assert.Equal(t, int64(100), result.TokensUsed)

	entries := f.auditLog.Query(audit.Query{OrgID: f.orgID})
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionToolCall, entries[0].Action)
	assert.Equal(t, models.AuditResultExecuted, entries[0].Result)
	require.NotNil(t, entries[0].ToolName)
	assert.Equal(t, "search", *entries[0].ToolName)

	// usage was deducted
	b, err := f.budgets.Get(f.orgID, &f.agentID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), b.TokensUsed)
}

func TestProxy_Execute_PolicyDenied(t *testing.T) {
	f := newFixture(t, &stubTool{name: "forbidden", result: "never"})

	result, err := f.proxy.Execute(context.Background(), f.request("forbidden", 100))
	require.Error(t, err)
	assert.True(t, services.IsPolicyDeniedError(err))
	require.NotNil(t, result)
	assert.False(t, result.Allowed)

	entries := f.auditLog.Query(audit.Query{OrgID: f.orgID})
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditResultDenied, entries[0].Result)

	// no budget was consumed
	b, err := f.budgets.Get(f.orgID, &f.agentID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.TokensUsed)
}

func TestProxy_Execute_BudgetDenied(t *testing.T) {
	f := newFixture(t, &stubTool{name: "search", result: "ok"})

	result, err := f.proxy.Execute(context.Background(), f.request("search", 6_000))
	require.Error(t, err)
	assert.True(t, services.IsBudgetError(err))
	require.NotNil(t, result)
	assert.False(t, result.Allowed)

	entries := f.auditLog.Query(audit.Query{OrgID: f.orgID})
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditResultDenied, entries[0].Result)
}

func TestProxy_Execute_ToolNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.proxy.Execute(context.Background(), f.request("missing", 100))
	require.Error(t, err)
	assert.True(t, services.IsToolNotFoundError(err))

	// exactly one terminal audit entry
	entries := f.auditLog.Query(audit.Query{OrgID: f.orgID})
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditResultFailed, entries[0].Result)
}

func TestProxy_Execute_ToolFailureChargesNothing(t *testing.T) {
	f := newFixture(t, &stubTool{name: "flaky", err: errors.New("upstream 500")})

	result, err := f.proxy.Execute(context.Background(), f.request("flaky", 200))
	require.Error(t, err)
	assert.True(t, services.IsToolExecutionError(err))
	require.NotNil(t, result)
	assert.True(t, result.Allowed)
	assert.Zero(t, result.TokensUsed)

	entries := f.auditLog.Query(audit.Query{OrgID: f.orgID})
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditResultFailed, entries[0].Result)

	// a failed invocation deducts nothing and counts no invocation
	b, err := f.budgets.Get(f.orgID, &f.agentID)
	require.NoError(t, err)
	assert.Zero(t, b.TokensUsed)
	assert.Zero(t, b.ToolInvocations)
}

func TestProxy_Execute_PanicContained(t *testing.T) {
	f := newFixture(t, &stubTool{name: "wild", panics: true})

	_, err := f.proxy.Execute(context.Background(), f.request("wild", 100))
	require.Error(t, err)
	assert.True(t, services.IsToolExecutionError(err))
	assert.Contains(t, err.Error(), "panicked")
}

func TestProxy_Execute_ParameterValidation(t *testing.T) {
	f := newFixture(t, &stubTool{name: "search", result: "ok"})

	t.Run("too many parameters", func(t *testing.T) {
		req := f.request("search", 100)
		req.Parameters = map[string]interface{}{}
		for i := 0; i < MaxParameters+1; i++ {
			req.Parameters[fmt.Sprintf("key_%d", i)] = i
		}
		_, err := f.proxy.Execute(context.Background(), req)
		require.Error(t, err)
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("oversized key", func(t *testing.T) {
		req := f.request("search", 100)
		req.Parameters = map[string]interface{}{strings.Repeat("k", MaxParameterKeyLength+1): "v"}
		_, err := f.proxy.Execute(context.Background(), req)
		require.Error(t, err)
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("oversized string value", func(t *testing.T) {
		req := f.request("search", 100)
		req.Parameters = map[string]interface{}{"v": strings.Repeat("x", MaxParameterValueLength+1)}
		_, err := f.proxy.Execute(context.Background(), req)
		require.Error(t, err)
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("boundary sizes pass", func(t *testing.T) {
		req := f.request("search", 100)
		req.Parameters = map[string]interface{}{
			strings.Repeat("k", MaxParameterKeyLength): strings.Repeat("x", MaxParameterValueLength),
		}
		_, err := f.proxy.Execute(context.Background(), req)
		assert.NoError(t, err)
	})
}

func TestProxy_AuditParametersAreTypesOnly(t *testing.T) {
	f := newFixture(t, &stubTool{name: "search", result: "ok"})

	req := f.request("search", 100)
	req.Parameters = map[string]interface{}{"query": "super secret", "count": 3}
	_, err := f.proxy.Execute(context.Background(), req)
	require.NoError(t, err)

	entries := f.auditLog.Query(audit.Query{OrgID: f.orgID})
	require.Len(t, entries, 1)
	assert.Equal(t, "string", entries[0].Parameters["query"])
	assert.Equal(t, "int", entries[0].Parameters["count"])
	for _, v := range entries[0].Parameters {
		assert.NotContains(t, v, "secret")
	}
}
