package models

import (
	"time"

	"github.com/google/uuid"
)

// AgentRole describes what an agent is allowed to do within its organization
type AgentRole string

const (
	RoleExecutor AgentRole = "executor"
	RolePlanner  AgentRole = "planner"
	RoleReviewer AgentRole = "reviewer"
	RoleAdmin    AgentRole = "admin"
)

// AgentIdentity represents a registered agent within an organization.
// Agents are never hard-deleted; deactivation flips Active to false and
// an inactive agent can never pass validation.
type AgentIdentity struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	OrgID           uuid.UUID  `json:"org_id" db:"org_id"`
	Name            string     `json:"name" db:"name"`
	Role            AgentRole  `json:"role" db:"role"`
	DelegatedUserID *uuid.UUID `json:"delegated_user_id,omitempty" db:"delegated_user_id"`
	Active          bool       `json:"active" db:"active"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// NewAgentIdentity creates a new active AgentIdentity instance
func NewAgentIdentity(orgID uuid.UUID, name string, role AgentRole) *AgentIdentity {
	return &AgentIdentity{
		ID:        uuid.New(),
		OrgID:     orgID,
		Name:      name,
		Role:      role,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
}

// WithDelegatedUser records the human user the agent acts on behalf of
func (a *AgentIdentity) WithDelegatedUser(userID uuid.UUID) *AgentIdentity {
	a.DelegatedUserID = &userID
	return a
}

// Deactivate soft-deletes the agent
func (a *AgentIdentity) Deactivate() {
	a.Active = false
}
