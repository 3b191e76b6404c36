package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgentIdentity(t *testing.T) {
	orgID := uuid.New()
	ag := NewAgentIdentity(orgID, "worker", RoleExecutor)

	assert.True(t, ag.Active)
	assert.Equal(t, orgID, ag.OrgID)
	assert.Nil(t, ag.DelegatedUserID)

	userID := uuid.New()
	ag = ag.WithDelegatedUser(userID)
	require.NotNil(t, ag.DelegatedUserID)
	assert.Equal(t, userID, *ag.DelegatedUserID)

	ag.Deactivate()
	assert.False(t, ag.Active)
}

func TestPolicy_IsOrgLevel(t *testing.T) {
	orgID := uuid.New()
	agentID := uuid.New()

	assert.True(t, NewPolicy(orgID, nil, nil, 1000, 60).IsOrgLevel())
	assert.False(t, NewPolicy(orgID, &agentID, nil, 1000, 60).IsOrgLevel())
}

func TestBudget_TokensRemaining(t *testing.T) {
	b := NewBudget(uuid.New(), nil, 1000, 30)

	assert.Equal(t, int64(1000), b.TokensRemaining())
	assert.False(t, b.IsExhausted())

	b.TokensUsed = 999
	assert.Equal(t, int64(1), b.TokensRemaining())

	// overage clamps at zero
	b.TokensUsed = 1500
	assert.Equal(t, int64(0), b.TokensRemaining())
	assert.True(t, b.IsExhausted())
}

func TestScopedToken_IsExpired(t *testing.T) {
	tok := &ScopedToken{ExpiresAt: time.Now().Add(time.Minute)}
	assert.False(t, tok.IsExpired())

	tok.ExpiresAt = time.Now().Add(-time.Second)
	assert.True(t, tok.IsExpired())

	// zero expiry never expires
	tok.ExpiresAt = time.Time{}
	assert.False(t, tok.IsExpired())
}

func TestAuditEntry_Builders(t *testing.T) {
	orgID := uuid.New()
	agentID := uuid.New()
	execID := uuid.New()
	userID := uuid.New()

	e := NewAuditEntry(orgID, agentID, execID, AuditActionToolCall, AuditResultExecuted).
		WithTool("search").
		WithDelegatedUser(&userID).
		WithReason("ok").
		WithParameters(map[string]string{"query": "string"}).
		WithMetrics(12, 340)

	require.NotNil(t, e.ToolName)
	assert.Equal(t, "search", *e.ToolName)
	require.NotNil(t, e.DelegatedUserID)
	assert.Equal(t, userID, *e.DelegatedUserID)
	require.NotNil(t, e.Reason)
	assert.Equal(t, "ok", *e.Reason)
	assert.Equal(t, int64(12), e.LatencyMs)
	assert.Equal(t, int64(340), e.TokensUsed)
	assert.False(t, e.Timestamp.IsZero())
}

func TestPolicyDecisionBuilders(t *testing.T) {
	policyID := uuid.New()

	d := Allow("ok", policyID)
	assert.True(t, d.Allowed)
	require.NotNil(t, d.MatchedPolicyID)
	assert.Equal(t, policyID, *d.MatchedPolicyID)

	d = Deny("nope")
	assert.False(t, d.Allowed)
	assert.Nil(t, d.MatchedPolicyID)

	d = DenyMatched("nope", policyID)
	assert.False(t, d.Allowed)
	assert.NotNil(t, d.MatchedPolicyID)
}
