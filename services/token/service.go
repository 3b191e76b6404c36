// Package token implements scoped token exchange: trading a broad agent
// credential for a short-lived JWT narrowed to a single tool, following
// the RFC 8693 delegation claim shape.
package token

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/config"
	"github.com/agentgrid/control-plane/models"
	"github.com/agentgrid/control-plane/observability"
	"github.com/agentgrid/control-plane/services"
)

// TokenExchangeGrantType is the RFC 8693 grant type recorded in issued tokens
const TokenExchangeGrantType = "urn:ietf:params:oauth:grant-type:token-exchange"

// Service issues, validates and revokes scoped tokens. The active set is
// bounded; issuing past capacity evicts the token closest to expiry.
type Service struct {
	mu      sync.Mutex
	active  map[uuid.UUID]*models.ScopedToken
	cfg     config.TokenConfig
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewService creates a new token Service. metrics may be nil.
func NewService(cfg config.TokenConfig, metrics *observability.Metrics, logger *zap.Logger) *Service {
	return &Service{
		active:  make(map[uuid.UUID]*models.ScopedToken),
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// Exchange trades the parent credential for a scoped token bound to one
// tool. Scopes default to "tool:<name>:execute" when empty; ttl defaults
// to the configured TTL when zero.
func (s *Service) Exchange(agent *models.AgentIdentity, parentTokenID, toolName string, scopes []string, ttl time.Duration) (*models.ScopedToken, error) {
	if agent == nil {
		return nil, services.WrapValidation("agent is required", nil)
	}
	if toolName == "" {
		return nil, services.WrapValidation("tool name is required", nil)
	}
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	if len(scopes) == 0 {
		scopes = []string{fmt.Sprintf("tool:%s:execute", toolName)}
	}

	now := time.Now().UTC()
	tok := &models.ScopedToken{
		ID:            uuid.New(),
		ParentTokenID: parentTokenID,
		AgentID:       agent.ID,
		OrgID:         agent.OrgID,
		ToolName:      toolName,
		Scopes:        scopes,
		IssuedAt:      now,
		ExpiresAt:     now.Add(ttl),
	}

	signed, err := s.sign(tok)
	if err != nil {
		return nil, services.WrapInternal("failed to sign token", err)
	}
	tok.SignedJWT = signed

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.makeRoomLocked(); err != nil {
		return nil, err
	}
	s.active[tok.ID] = tok
	s.setGaugeLocked()

	s.logger.Info("scoped token issued",
		zap.String("token_id", tok.ID.String()),
		zap.String("agent_id", agent.ID.String()),
		zap.String("tool_name", toolName),
		zap.Time("expires_at", tok.ExpiresAt))
	return tok, nil
}

// makeRoomLocked enforces the capacity bound: drop expired tokens first,
// then evict the token nearest expiry (oldest issued on ties).
func (s *Service) makeRoomLocked() error {
	if len(s.active) < s.cfg.MaxActiveTokens {
		return nil
	}

	for id, tok := range s.active {
		if tok.IsExpired() {
			delete(s.active, id)
		}
	}
	if len(s.active) < s.cfg.MaxActiveTokens {
		return nil
	}

	var victim *models.ScopedToken
	for _, tok := range s.active {
		if victim == nil ||
			tok.ExpiresAt.Before(victim.ExpiresAt) ||
			(tok.ExpiresAt.Equal(victim.ExpiresAt) && tok.IssuedAt.Before(victim.IssuedAt)) {
			victim = tok
		}
	}
	if victim == nil {
		return services.ErrTokenCapacity
	}

	delete(s.active, victim.ID)
	s.logger.Warn("scoped token evicted at capacity",
		zap.String("token_id", victim.ID.String()),
		zap.Time("expires_at", victim.ExpiresAt))
	return nil
}

// sign builds the HS256 JWT carrying the RFC 8693 actor claim
func (s *Service) sign(tok *models.ScopedToken) (string, error) {
	claims := jwt.MapClaims{
		"jti":        tok.ID.String(),
		"iss":        s.cfg.Issuer,
		"sub":        tok.AgentID.String(),
		"aud":        "tool:" + tok.ToolName,
		"iat":        tok.IssuedAt.Unix(),
		"exp":        tok.ExpiresAt.Unix(),
		"org_id":     tok.OrgID.String(),
		"tool_name":  tok.ToolName,
		"scopes":     tok.Scopes,
		"grant_type": TokenExchangeGrantType,
	}
	if tok.ParentTokenID != "" {
		claims["act"] = map[string]interface{}{"sub": tok.ParentTokenID}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.SigningSecret))
}

// Validate checks that the token is active, unexpired and carries a
// valid signature.
func (s *Service) Validate(tokenID uuid.UUID) (*models.ScopedToken, error) {
	s.mu.Lock()
	tok, ok := s.active[tokenID]
	s.mu.Unlock()

	if !ok {
		return nil, services.ErrTokenNotFound
	}
	if tok.IsExpired() {
		return nil, services.WrapError(services.ErrorTypeUnauthorized, "token expired", nil)
	}
	if _, err := s.ValidateJWT(tok.SignedJWT); err != nil {
		return nil, err
	}
	return tok, nil
}

// ValidateJWT verifies the signature and expiry of a raw signed token
// and returns its claims.
func (s *Service) ValidateJWT(signed string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(signed, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.SigningSecret), nil
	}, jwt.WithIssuer(s.cfg.Issuer))
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeUnauthorized, "invalid token", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, services.WrapError(services.ErrorTypeUnauthorized, "invalid token claims", nil)
	}
	return claims, nil
}

// Revoke removes a token from the active set
func (s *Service) Revoke(tokenID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[tokenID]; !ok {
		return services.ErrTokenNotFound
	}
	delete(s.active, tokenID)
	s.setGaugeLocked()

	s.logger.Info("scoped token revoked", zap.String("token_id", tokenID.String()))
	return nil
}

// RevokeAllForAgent removes every active token issued to the agent and
// returns how many were revoked.
func (s *Service) RevokeAllForAgent(agentID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	revoked := 0
	for id, tok := range s.active {
		if tok.AgentID == agentID {
			delete(s.active, id)
			revoked++
		}
	}
	s.setGaugeLocked()

	if revoked > 0 {
		s.logger.Info("scoped tokens revoked for agent",
			zap.String("agent_id", agentID.String()),
			zap.Int("count", revoked))
	}
	return revoked
}

// CleanupExpired drops expired tokens and returns how many were removed
func (s *Service) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, tok := range s.active {
		if tok.IsExpired() {
			delete(s.active, id)
			removed++
		}
	}
	s.setGaugeLocked()
	return removed
}

// ActiveCount returns the number of tokens in the active set
func (s *Service) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Service) setGaugeLocked() {
	if s.metrics != nil {
		s.metrics.ActiveScopedTokens.Set(float64(len(s.active)))
	}
}
