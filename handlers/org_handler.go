package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/services/org"
	"github.com/agentgrid/control-plane/utils"
)

// CreateOrganizationRequest is the body for organization creation
type CreateOrganizationRequest struct {
	Name     string            `json:"name" validate:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OrgHandler handles organization management requests
type OrgHandler struct {
	orgs   *org.Service
	logger *zap.Logger
}

// NewOrgHandler creates a new OrgHandler
func NewOrgHandler(orgs *org.Service, logger *zap.Logger) *OrgHandler {
	return &OrgHandler{orgs: orgs, logger: logger}
}

// HandleCreate handles POST /api/v1/organizations
func (h *OrgHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	o, err := h.orgs.Create(req.Name, req.Metadata)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, o)
}

// HandleGet handles GET /api/v1/organizations/{orgID}
func (h *OrgHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}

	o, err := h.orgs.Get(orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, o)
}

// HandleList handles GET /api/v1/organizations
func (h *OrgHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.orgs.List()
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, orgs)
}

// HandleDelete handles DELETE /api/v1/organizations/{orgID}
func (h *OrgHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseUUIDParam(w, r, "orgID")
	if !ok {
		return
	}

	deleted, err := h.orgs.Delete(orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if !deleted {
		_ = utils.WriteNotFound(w, "organization not found")
		return
	}
	utils.WriteNoContent(w)
}

// parseUUIDParam reads a UUID URL parameter, writing a 400 on failure
func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		_ = utils.WriteBadRequest(w, "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}
