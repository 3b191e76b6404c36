package audit

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/models"
)

func entry(orgID, agentID, executionID uuid.UUID, action models.AuditAction) *models.AuditEntry {
	return models.NewAuditEntry(orgID, agentID, executionID, action, models.AuditResultExecuted)
}

func TestLog_AppendAndQuery(t *testing.T) {
	log := NewLog(10, zap.NewNop())
	orgID := uuid.New()
	agentID := uuid.New()
	execID := uuid.New()

	first := entry(orgID, agentID, execID, models.AuditActionPolicyCheck)
	second := entry(orgID, agentID, execID, models.AuditActionToolCall)
	log.Append(first)
	log.Append(second)

	t.Run("newest first", func(t *testing.T) {
		results := log.Query(Query{OrgID: orgID})
		require.Len(t, results, 2)
		assert.Equal(t, second.ID, results[0].ID)
		assert.Equal(t, first.ID, results[1].ID)
	})

	t.Run("filters by action", func(t *testing.T) {
		results := log.Query(Query{OrgID: orgID, Action: models.AuditActionToolCall})
		require.Len(t, results, 1)
		assert.Equal(t, second.ID, results[0].ID)
	})

	t.Run("filters by agent", func(t *testing.T) {
		other := uuid.New()
		results := log.Query(Query{OrgID: orgID, AgentID: &other})
		assert.Empty(t, results)
	})

	t.Run("filters by execution", func(t *testing.T) {
		results := log.Query(Query{OrgID: orgID, ExecutionID: &execID})
		assert.Len(t, results, 2)
	})

	t.Run("org isolation", func(t *testing.T) {
		results := log.Query(Query{OrgID: uuid.New()})
		assert.Empty(t, results)
	})

	t.Run("zero org matches every org", func(t *testing.T) {
		log.Append(entry(uuid.New(), agentID, execID, models.AuditActionToolCall))
		results := log.Query(Query{})
		assert.Len(t, results, 3)
	})
}

func TestLog_QueryLimit(t *testing.T) {
	log := NewLog(500, zap.NewNop())
	orgID := uuid.New()
	agentID := uuid.New()

	for i := 0; i < 150; i++ {
		log.Append(entry(orgID, agentID, uuid.New(), models.AuditActionToolCall))
	}

	t.Run("default limit", func(t *testing.T) {
		assert.Len(t, log.Query(Query{OrgID: orgID}), DefaultQueryLimit)
	})

	t.Run("explicit limit", func(t *testing.T) {
		assert.Len(t, log.Query(Query{OrgID: orgID, Limit: 7}), 7)
	})
}

func TestLog_CapacityEviction(t *testing.T) {
	log := NewLog(3, zap.NewNop())
	orgID := uuid.New()
	agentID := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		e := entry(orgID, agentID, uuid.New(), models.AuditActionToolCall)
		ids = append(ids, e.ID)
		log.Append(e)
	}

	assert.Equal(t, 3, log.Count())
	assert.Equal(t, int64(5), log.TotalAppended())

	results := log.Query(Query{OrgID: orgID})
	require.Len(t, results, 3)
	// the two oldest entries were evicted
	assert.Equal(t, ids[4], results[0].ID)
	assert.Equal(t, ids[2], results[2].ID)
}

func TestLog_DelegationChain(t *testing.T) {
	log := NewLog(10, zap.NewNop())
	orgID := uuid.New()
	agentID := uuid.New()
	execID := uuid.New()

	policyCheck := entry(orgID, agentID, execID, models.AuditActionPolicyCheck)
	toolCall := entry(orgID, agentID, execID, models.AuditActionToolCall)
	complete := entry(orgID, agentID, execID, models.AuditActionExecutionComplete)
	log.Append(policyCheck)
	log.Append(toolCall)
	log.Append(entry(orgID, agentID, uuid.New(), models.AuditActionToolCall)) // unrelated execution
	log.Append(complete)

	chain := log.DelegationChain(orgID, execID)
	require.Len(t, chain, 3)
	assert.Equal(t, policyCheck.ID, chain[0].ID)
	assert.Equal(t, toolCall.ID, chain[1].ID)
	assert.Equal(t, complete.ID, chain[2].ID)
}

func TestLog_DefaultCapacity(t *testing.T) {
	log := NewLog(0, zap.NewNop())
	log.Append(entry(uuid.New(), uuid.New(), uuid.New(), models.AuditActionToolCall))
	assert.Equal(t, 1, log.Count())
}
