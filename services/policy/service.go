// Package policy implements the two-level policy engine: org- and
// agent-level tool permissions and resource limits merged into one
// effective policy, evaluated closed-by-default.
package policy

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/models"
	"github.com/agentgrid/control-plane/services"
	"github.com/agentgrid/control-plane/store"
	"github.com/agentgrid/control-plane/utils"
)

// RemoteEvaluator evaluates an effective policy against a request using an
// external policy-as-code engine. Implementations must return an error on
// any transport or evaluation failure so the Service can fall back to the
// local algorithm.
type RemoteEvaluator interface {
	Evaluate(policy *models.Policy, input EvaluationInput) (models.PolicyDecision, error)
}

// EvaluationInput is the request shape handed to an evaluator
type EvaluationInput struct {
	ToolName        string `json:"tool_name"`
	EstimatedTokens int64  `json:"estimated_tokens"`
}

// Service stores policies per scope and evaluates requests against the
// merged effective policy.
type Service struct {
	store  store.Store[*models.Policy]
	remote RemoteEvaluator // optional; nil means local-only evaluation
	logger *zap.Logger
}

// NewService creates a new policy Service. remote may be nil.
func NewService(st store.Store[*models.Policy], remote RemoteEvaluator, logger *zap.Logger) *Service {
	return &Service{store: st, remote: remote, logger: logger}
}

func policyKey(orgID uuid.UUID, agentID *uuid.UUID) string {
	if agentID != nil {
		return fmt.Sprintf("%s:agent:%s", orgID, agentID)
	}
	return fmt.Sprintf("%s:org", orgID)
}

// Set stores or replaces the policy at the given scope (org-level when
// agentID is nil). The policy id is preserved across replacement.
func (s *Service) Set(orgID uuid.UUID, agentID *uuid.UUID, tools []models.ToolPermission, tokenLimit int64, timeoutSeconds int) (*models.Policy, error) {
	if tokenLimit == 0 {
		tokenLimit = models.DefaultTokenLimit
	}
	if timeoutSeconds == 0 {
		timeoutSeconds = models.DefaultExecutionTimeoutSeconds
	}
	if err := utils.ValidateTokenLimit(tokenLimit, "token_limit"); err != nil {
		return nil, services.WrapValidation(err.Error(), nil)
	}
	if timeoutSeconds < 0 {
		return nil, services.WrapValidation("execution timeout must not be negative", nil)
	}
	for _, perm := range tools {
		if err := utils.ValidateToolName(perm.ToolName, "tool_name"); err != nil {
			return nil, services.WrapValidation(err.Error(), nil)
		}
	}

	key := policyKey(orgID, agentID)
	existing, ok, err := s.store.Get(key)
	if err != nil {
		return nil, services.WrapInternal("failed to read policy", err)
	}

	p := models.NewPolicy(orgID, agentID, tools, tokenLimit, timeoutSeconds)
	if ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	}

	if err := s.store.Put(key, p); err != nil {
		return nil, services.WrapInternal("failed to store policy", err)
	}

	scope := "org"
	if agentID != nil {
		scope = "agent:" + agentID.String()
	}
	s.logger.Info("policy set",
		zap.String("org_id", orgID.String()),
		zap.String("scope", scope),
		zap.String("policy_id", p.ID.String()),
		zap.Int("tool_permissions", len(tools)))
	return p, nil
}

// Get returns the policy stored at the given scope, or nil when absent
func (s *Service) Get(orgID uuid.UUID, agentID *uuid.UUID) (*models.Policy, error) {
	p, ok, err := s.store.Get(policyKey(orgID, agentID))
	if err != nil {
		return nil, services.WrapInternal("failed to read policy", err)
	}
	if !ok {
		return nil, nil
	}
	return p, nil
}

// GetEffective merges the org-level and agent-level policies into the
// policy that actually governs the agent. Returns nil when neither scope
// has a policy.
func (s *Service) GetEffective(orgID, agentID uuid.UUID) (*models.Policy, error) {
	orgPolicy, err := s.Get(orgID, nil)
	if err != nil {
		return nil, err
	}
	agentPolicy, err := s.Get(orgID, &agentID)
	if err != nil {
		return nil, err
	}

	if orgPolicy != nil && agentPolicy != nil {
		return mergePolicies(orgPolicy, agentPolicy), nil
	}
	if agentPolicy != nil {
		return agentPolicy, nil
	}
	return orgPolicy, nil
}

// mergePolicies combines org and agent policies. An org-level DENY is a
// hard ceiling the agent can never lift; everything else at the agent
// level overrides (replaces or adds to) the org baseline. Token limit and
// timeout compose as the tightest of the two.
func mergePolicies(org, agent *models.Policy) *models.Policy {
	deniedAtOrg := make(map[string]bool)
	for _, perm := range org.Tools {
		if perm.Effect == models.EffectDeny {
			deniedAtOrg[perm.ToolName] = true
		}
	}

	merged := make([]models.ToolPermission, len(org.Tools))
	copy(merged, org.Tools)

	for _, perm := range agent.Tools {
		if deniedAtOrg[perm.ToolName] {
			continue
		}
		replaced := false
		for i, existing := range merged {
			if existing.ToolName == perm.ToolName {
				merged[i] = perm
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, perm)
		}
	}

	return &models.Policy{
		ID:                      agent.ID,
		OrgID:                   org.OrgID,
		AgentID:                 agent.AgentID,
		Tools:                   merged,
		TokenLimit:              min(org.TokenLimit, agent.TokenLimit),
		ExecutionTimeoutSeconds: min(org.ExecutionTimeoutSeconds, agent.ExecutionTimeoutSeconds),
		CreatedAt:               agent.CreatedAt,
		UpdatedAt:               agent.UpdatedAt,
	}
}

// Evaluate decides whether the agent may invoke the tool with the
// estimated token cost. Absence of any policy, or of any matching
// permission, denies.
func (s *Service) Evaluate(orgID, agentID uuid.UUID, toolName string, estimatedTokens int64) (models.PolicyDecision, error) {
	effective, err := s.GetEffective(orgID, agentID)
	if err != nil {
		return models.PolicyDecision{}, err
	}
	if effective == nil {
		return models.Deny("no policy configured"), nil
	}

	if estimatedTokens > effective.TokenLimit {
		return models.DenyMatched(
			fmt.Sprintf("estimated tokens %d exceeds limit %d", estimatedTokens, effective.TokenLimit),
			effective.ID,
		), nil
	}

	// The external evaluator, when configured, is preferred for the tool
	// permission decision; availability beats richness, so any failure
	// falls back to the local walk.
	if s.remote != nil {
		decision, err := s.remote.Evaluate(effective, EvaluationInput{
			ToolName:        toolName,
			EstimatedTokens: estimatedTokens,
		})
		if err == nil {
			return decision, nil
		}
		s.logger.Warn("remote policy evaluation failed, falling back to local",
			zap.String("org_id", orgID.String()),
			zap.String("tool", toolName),
			zap.Error(err))
	}

	return evaluateToolPermission(effective, toolName), nil
}

// evaluateToolPermission walks the permission list: an exact DENY wins
// unconditionally, then an exact ALLOW, then a wildcard ALLOW. No match
// denies.
func evaluateToolPermission(p *models.Policy, toolName string) models.PolicyDecision {
	for _, perm := range p.Tools {
		if perm.ToolName == toolName && perm.Effect == models.EffectDeny {
			return models.DenyMatched(fmt.Sprintf("tool %q explicitly denied", toolName), p.ID)
		}
	}
	for _, perm := range p.Tools {
		if perm.ToolName == toolName && perm.Effect == models.EffectAllow {
			return models.Allow(fmt.Sprintf("tool %q explicitly allowed", toolName), p.ID)
		}
	}
	for _, perm := range p.Tools {
		if perm.ToolName == models.WildcardTool && perm.Effect == models.EffectAllow {
			return models.Allow("wildcard allow", p.ID)
		}
	}
	return models.DenyMatched(fmt.Sprintf("tool %q not in allowed list (default deny)", toolName), p.ID)
}
