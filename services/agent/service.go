// Package agent manages agent identities within organizations. Agents are
// keyed by (org, agent) so no cross-organization lookup path exists except
// the explicitly internal GetByID scan used by the execution runtime.
package agent

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/models"
	"github.com/agentgrid/control-plane/services"
	"github.com/agentgrid/control-plane/store"
	"github.com/agentgrid/control-plane/utils"
)

// Service manages agent identity records
type Service struct {
	store  store.Store[*models.AgentIdentity]
	logger *zap.Logger
}

// NewService creates a new agent Service
func NewService(st store.Store[*models.AgentIdentity], logger *zap.Logger) *Service {
	return &Service{store: st, logger: logger}
}

func agentKey(orgID, agentID uuid.UUID) string {
	return fmt.Sprintf("%s:agent:%s", orgID, agentID)
}

func orgPrefix(orgID uuid.UUID) string {
	return fmt.Sprintf("%s:agent:", orgID)
}

// Register creates a new active agent in the organization
func (s *Service) Register(orgID uuid.UUID, name string, role models.AgentRole, delegatedUserID *uuid.UUID) (*models.AgentIdentity, error) {
	if err := utils.ValidateName(name, "agent name"); err != nil {
		return nil, services.WrapValidation(err.Error(), nil)
	}

	agent := models.NewAgentIdentity(orgID, name, role)
	if delegatedUserID != nil {
		agent.WithDelegatedUser(*delegatedUserID)
	}

	if err := s.store.Put(agentKey(orgID, agent.ID), agent); err != nil {
		return nil, services.WrapInternal("failed to store agent", err)
	}

	s.logger.Info("agent registered",
		zap.String("org_id", orgID.String()),
		zap.String("agent_id", agent.ID.String()),
		zap.String("role", string(role)))
	return agent, nil
}

// Get returns the agent scoped to its organization
func (s *Service) Get(orgID, agentID uuid.UUID) (*models.AgentIdentity, error) {
	agent, ok, err := s.store.Get(agentKey(orgID, agentID))
	if err != nil {
		return nil, services.WrapInternal("failed to read agent", err)
	}
	if !ok {
		return nil, services.ErrAgentNotFound
	}
	return agent, nil
}

// GetByID scans all organizations for the agent id. Internal-only
// convenience path for the execution runtime; never exposed to external
// callers, which must always pass an org scope.
func (s *Service) GetByID(agentID uuid.UUID) (*models.AgentIdentity, error) {
	agents, err := s.store.List("")
	if err != nil {
		return nil, services.WrapInternal("failed to scan agents", err)
	}
	for _, a := range agents {
		if a.ID == agentID {
			return a, nil
		}
	}
	return nil, services.ErrAgentNotFound
}

// List returns all agents registered in the organization
func (s *Service) List(orgID uuid.UUID) ([]*models.AgentIdentity, error) {
	agents, err := s.store.List(orgPrefix(orgID))
	if err != nil {
		return nil, services.WrapInternal("failed to list agents", err)
	}
	return agents, nil
}

// Deactivate soft-deletes the agent. Deactivated agents are kept on record
// but can never pass validation again.
func (s *Service) Deactivate(orgID, agentID uuid.UUID) (*models.AgentIdentity, error) {
	agent, err := s.Get(orgID, agentID)
	if err != nil {
		return nil, err
	}

	agent.Deactivate()
	if err := s.store.Put(agentKey(orgID, agentID), agent); err != nil {
		return nil, services.WrapInternal("failed to store agent", err)
	}

	s.logger.Info("agent deactivated",
		zap.String("org_id", orgID.String()),
		zap.String("agent_id", agentID.String()))
	return agent, nil
}
