// Package org provides CRUD operations for organizations, the root of the
// ownership hierarchy.
package org

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/models"
	"github.com/agentgrid/control-plane/services"
	"github.com/agentgrid/control-plane/store"
	"github.com/agentgrid/control-plane/utils"
)

// Service manages organization records
type Service struct {
	store  store.Store[*models.Organization]
	logger *zap.Logger
}

// NewService creates a new organization Service
func NewService(st store.Store[*models.Organization], logger *zap.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// Create registers a new organization
func (s *Service) Create(name string, metadata map[string]string) (*models.Organization, error) {
	if err := utils.ValidateName(name, "org name"); err != nil {
		return nil, services.WrapValidation(err.Error(), nil)
	}

	org := models.NewOrganization(name, metadata)
	if err := s.store.Put(org.ID.String(), org); err != nil {
		return nil, services.WrapInternal("failed to store organization", err)
	}

	s.logger.Info("organization created",
		zap.String("org_id", org.ID.String()),
		zap.String("name", name))
	return org, nil
}

// Get returns the organization with the given id
func (s *Service) Get(orgID uuid.UUID) (*models.Organization, error) {
	org, ok, err := s.store.Get(orgID.String())
	if err != nil {
		return nil, services.WrapInternal("failed to read organization", err)
	}
	if !ok {
		return nil, services.ErrOrganizationNotFound
	}
	return org, nil
}

// List returns all organizations
func (s *Service) List() ([]*models.Organization, error) {
	orgs, err := s.store.List("")
	if err != nil {
		return nil, services.WrapInternal("failed to list organizations", err)
	}
	return orgs, nil
}

// Delete removes an organization, reporting whether it existed
func (s *Service) Delete(orgID uuid.UUID) (bool, error) {
	deleted, err := s.store.Delete(orgID.String())
	if err != nil {
		return false, services.WrapInternal("failed to delete organization", err)
	}
	if deleted {
		s.logger.Info("organization deleted", zap.String("org_id", orgID.String()))
	}
	return deleted, nil
}

// Exists reports whether the organization is registered
func (s *Service) Exists(orgID uuid.UUID) (bool, error) {
	exists, err := s.store.Exists(orgID.String())
	if err != nil {
		return false, services.WrapInternal("failed to check organization", err)
	}
	return exists, nil
}
