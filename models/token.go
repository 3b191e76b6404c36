package models

import (
	"time"

	"github.com/google/uuid"
)

// ScopedToken is a short-lived credential narrowed from a broader agent
// credential, bound to a single tool. It exists only while unexpired and
// unrevoked; the active set is capacity-bounded.
type ScopedToken struct {
	ID            uuid.UUID `json:"id"`
	ParentTokenID string    `json:"parent_token_id"`
	AgentID       uuid.UUID `json:"agent_id"`
	OrgID         uuid.UUID `json:"org_id"`
	ToolName      string    `json:"tool_name"`
	Scopes        []string  `json:"scopes"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	SignedJWT     string    `json:"signed_jwt"`
}

// IsExpired reports whether the token's TTL has elapsed
func (t *ScopedToken) IsExpired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}
