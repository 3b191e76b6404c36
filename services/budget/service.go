// Package budget implements the token budget engine: org- and per-agent
// spending limits, advisory pre-flight checks, and usage reporting with
// atomic deduction at both levels.
package budget

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/models"
	"github.com/agentgrid/control-plane/services"
	"github.com/agentgrid/control-plane/store"
	"github.com/agentgrid/control-plane/utils"
)

// Service manages budgets and usage reports. A single mutex covers all
// budget mutations so concurrent ReportUsage calls never lose a
// deduction; Check is intentionally read-only and advisory.
type Service struct {
	mu      sync.Mutex
	budgets store.Store[*models.Budget]
	reports store.Store[*models.UsageReport]
	logger  *zap.Logger
}

// NewService creates a new budget Service
func NewService(budgets store.Store[*models.Budget], reports store.Store[*models.UsageReport], logger *zap.Logger) *Service {
	return &Service{budgets: budgets, reports: reports, logger: logger}
}

func budgetKey(orgID uuid.UUID, agentID *uuid.UUID) string {
	if agentID != nil {
		return fmt.Sprintf("%s:agent:%s", orgID, agentID)
	}
	return fmt.Sprintf("%s:org", orgID)
}

func reportKey(orgID, reportID uuid.UUID) string {
	return fmt.Sprintf("%s:usage:%s", orgID, reportID)
}

// availableTokens is the remaining headroom, treating a budget whose
// reset period has elapsed as fully replenished. The reset itself is
// materialized lazily on the next deduction.
func availableTokens(b *models.Budget) int64 {
	if b.ResetDue() {
		return b.TokenLimit
	}
	return b.TokensRemaining()
}

// Set stores or replaces the budget at the given scope (org-level when
// agentID is nil). Replacement resets accumulated usage to zero.
func (s *Service) Set(orgID uuid.UUID, agentID *uuid.UUID, tokenLimit int64, resetPeriodDays int) (*models.Budget, error) {
	if tokenLimit == 0 {
		tokenLimit = models.DefaultBudgetTokenLimit
	}
	if err := utils.ValidateTokenLimit(tokenLimit, "token_limit"); err != nil {
		return nil, services.WrapValidation(err.Error(), nil)
	}
	if resetPeriodDays < 0 {
		return nil, services.WrapValidation("reset period must not be negative", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := budgetKey(orgID, agentID)
	existing, ok, err := s.budgets.Get(key)
	if err != nil {
		return nil, services.WrapInternal("failed to read budget", err)
	}

	b := models.NewBudget(orgID, agentID, tokenLimit, resetPeriodDays)
	if ok {
		b.ID = existing.ID
		b.CreatedAt = existing.CreatedAt
	}
	if err := s.budgets.Put(key, b); err != nil {
		return nil, services.WrapInternal("failed to store budget", err)
	}

	s.logger.Info("budget set",
		zap.String("org_id", orgID.String()),
		zap.Bool("org_level", agentID == nil),
		zap.Int64("token_limit", tokenLimit))
	return b, nil
}

// Get returns the budget at the given scope, or nil when none is configured
func (s *Service) Get(orgID uuid.UUID, agentID *uuid.UUID) (*models.Budget, error) {
	b, ok, err := s.budgets.Get(budgetKey(orgID, agentID))
	if err != nil {
		return nil, services.WrapInternal("failed to read budget", err)
	}
	if !ok {
		return nil, nil
	}
	return b, nil
}

// Check runs the advisory pre-flight: the estimate must fit within both
// the org-level and the agent-level budget. A scope with no budget
// configured imposes no constraint. The returned headroom is the minimum
// across the configured scopes.
func (s *Service) Check(orgID, agentID uuid.UUID, estimatedTokens int64) (models.BudgetDecision, error) {
	if estimatedTokens < 0 {
		return models.BudgetDecision{}, services.ErrNegativeTokens
	}

	orgBudget, err := s.Get(orgID, nil)
	if err != nil {
		return models.BudgetDecision{}, err
	}
	agentBudget, err := s.Get(orgID, &agentID)
	if err != nil {
		return models.BudgetDecision{}, err
	}

	if orgBudget == nil && agentBudget == nil {
		d := models.BudgetAllow(0)
		d.Reason = "no budget configured"
		return d, nil
	}

	remaining := int64(-1)
	if orgBudget != nil {
		orgRemaining := availableTokens(orgBudget)
		if estimatedTokens > orgRemaining {
			return models.BudgetDeny(
				fmt.Sprintf("organization budget exceeded: %d tokens remaining, %d requested", orgRemaining, estimatedTokens),
				orgRemaining), nil
		}
		remaining = orgRemaining
	}
	if agentBudget != nil {
		agentRemaining := availableTokens(agentBudget)
		if estimatedTokens > agentRemaining {
			return models.BudgetDeny(
				fmt.Sprintf("agent budget exceeded: %d tokens remaining, %d requested", agentRemaining, estimatedTokens),
				agentRemaining), nil
		}
		if remaining < 0 || agentRemaining < remaining {
			remaining = agentRemaining
		}
	}

	return models.BudgetAllow(remaining), nil
}

// ReportUsage records actual consumption after the fact and deducts it
// from both the org-level and the agent-level budget. Usage is deducted
// even when it drives a budget past its limit; the overage surfaces on
// the next Check. Returns the agent-level tokens remaining (org-level
// when no agent budget exists, zero when neither is configured).
func (s *Service) ReportUsage(report *models.UsageReport) (int64, error) {
	if report.TokensUsed < 0 {
		return 0, services.WrapValidation("tokens used must not be negative", services.ErrNegativeTokens)
	}
	if report.ToolInvocations < 0 {
		return 0, services.WrapValidation("tool invocations must not be negative", services.ErrNegativeTokens)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reports.Put(reportKey(report.OrgID, report.ID), report); err != nil {
		return 0, services.WrapInternal("failed to store usage report", err)
	}

	remaining := int64(0)
	for _, scope := range []*uuid.UUID{nil, &report.AgentID} {
		key := budgetKey(report.OrgID, scope)
		b, ok, err := s.budgets.Get(key)
		if err != nil {
			return 0, services.WrapInternal("failed to read budget", err)
		}
		if !ok {
			continue
		}
		// copy before mutating so concurrent readers never observe a
		// half-applied deduction
		updated := *b
		if updated.ResetDue() {
			updated.TokensUsed = 0
			updated.ToolInvocations = 0
			updated.LastResetAt = time.Now().UTC()
		}
		updated.TokensUsed += report.TokensUsed
		updated.ToolInvocations += report.ToolInvocations
		if err := s.budgets.Put(key, &updated); err != nil {
			return 0, services.WrapInternal("failed to store budget", err)
		}
		remaining = updated.TokensRemaining()
	}

	s.logger.Debug("usage reported",
		zap.String("org_id", report.OrgID.String()),
		zap.String("agent_id", report.AgentID.String()),
		zap.Int64("tokens_used", report.TokensUsed),
		zap.Int64("remaining", remaining))
	return remaining, nil
}

// GetUsage aggregates stored usage reports matching the query
func (s *Service) GetUsage(query models.UsageQuery) (*models.UsageSummary, error) {
	reports, err := s.reports.List(fmt.Sprintf("%s:usage:", query.OrgID))
	if err != nil {
		return nil, services.WrapInternal("failed to list usage reports", err)
	}

	summary := &models.UsageSummary{OrgID: query.OrgID, AgentID: query.AgentID}
	for _, r := range reports {
		if query.AgentID != nil && r.AgentID != *query.AgentID {
			continue
		}
		if query.StartTime != nil && r.Timestamp.Before(*query.StartTime) {
			continue
		}
		if query.EndTime != nil && r.Timestamp.After(*query.EndTime) {
			continue
		}
		summary.TotalTokens += r.TokensUsed
		summary.TotalToolInvocations += r.ToolInvocations
		summary.TotalExecutionDurationMs += r.DurationMs
		summary.ReportCount++
	}
	return summary, nil
}
