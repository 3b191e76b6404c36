// Package audit implements the append-only governance audit log: a
// bounded in-memory ring of immutable entries with filtered queries and
// delegation chain reconstruction.
package audit

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/models"
)

// DefaultCapacity bounds the number of retained entries; the oldest
// entries are evicted first once the log is full.
const DefaultCapacity = 100_000

// DefaultQueryLimit applies when a query does not set an explicit limit
const DefaultQueryLimit = 100

// Query filters the audit log. Zero-valued fields match everything.
type Query struct {
	OrgID       uuid.UUID
	AgentID     *uuid.UUID
	ExecutionID *uuid.UUID
	Action      models.AuditAction
	Limit       int
}

// Log is a bounded append-only audit log. Entries are never modified or
// selectively deleted; only capacity eviction removes them.
type Log struct {
	mu       sync.RWMutex
	entries  []*models.AuditEntry // ring buffer, oldest at head
	head     int
	size     int
	appended int64
	logger   *zap.Logger
}

// NewLog creates an audit log with the given capacity (DefaultCapacity
// when zero or negative).
func NewLog(capacity int, logger *zap.Logger) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{entries: make([]*models.AuditEntry, capacity), logger: logger}
}

// Append records an entry, evicting the oldest entry when full
func (l *Log) Append(entry *models.AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos := (l.head + l.size) % len(l.entries)
	if l.size == len(l.entries) {
		l.head = (l.head + 1) % len(l.entries)
	} else {
		l.size++
	}
	l.entries[pos] = entry
	l.appended++

	l.logger.Debug("audit entry appended",
		zap.String("org_id", entry.OrgID.String()),
		zap.String("action", string(entry.Action)),
		zap.String("result", string(entry.Result)))
}

func (l *Log) matches(entry *models.AuditEntry, q Query) bool {
	if q.OrgID != uuid.Nil && entry.OrgID != q.OrgID {
		return false
	}
	if q.AgentID != nil && entry.AgentID != *q.AgentID {
		return false
	}
	if q.ExecutionID != nil && entry.ExecutionID != *q.ExecutionID {
		return false
	}
	if q.Action != "" && entry.Action != q.Action {
		return false
	}
	return true
}

// Query returns matching entries newest first, up to the query limit
func (l *Log) Query(q Query) []*models.AuditEntry {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	results := make([]*models.AuditEntry, 0, limit)
	for i := l.size - 1; i >= 0 && len(results) < limit; i-- {
		entry := l.entries[(l.head+i)%len(l.entries)]
		if l.matches(entry, q) {
			results = append(results, entry)
		}
	}
	return results
}

// DelegationChain returns all entries for one execution in chronological
// order, reconstructing who acted on whose behalf across the execution.
func (l *Log) DelegationChain(orgID, executionID uuid.UUID) []*models.AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var chain []*models.AuditEntry
	for i := 0; i < l.size; i++ {
		entry := l.entries[(l.head+i)%len(l.entries)]
		if entry.OrgID == orgID && entry.ExecutionID == executionID {
			chain = append(chain, entry)
		}
	}
	return chain
}

// Count returns the number of currently retained entries
func (l *Log) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// TotalAppended returns the number of entries ever appended, including
// those since evicted.
func (l *Log) TotalAppended() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.appended
}
