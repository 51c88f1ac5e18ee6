package handlers

import (
	"errors"
	"net/http"
	"strings"

	"medshift/core/store"
	"medshift/core/utils"
)

type TenantsHandler struct {
	tenants store.TenantsStore
	audits  store.AuditStore
	logger  *utils.Logger
}

func NewTenantsHandler(tenants store.TenantsStore, audits store.AuditStore, logger *utils.Logger) *TenantsHandler {
	return &TenantsHandler{tenants: tenants, audits: audits, logger: logger}
}

type tenantRequest struct {
	ID           string `json:"id" validate:"required,alphanum"`
	Name         string `json:"name" validate:"required"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
}

func (h *TenantsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if err := bindJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "tenants.invalid", "tenants.error.invalidPayload")
		return
	}
	tenant := &store.Tenant{ID: req.ID, Name: req.Name, ContactEmail: req.ContactEmail}
	if err := h.tenants.CreateTenant(r.Context(), tenant); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "tenants.exists", "tenants.error.alreadyExists")
			return
		}
		writeError(w, http.StatusInternalServerError, "tenants.internal", "common.error.internal")
		return
	}
	if h.audits != nil {
		if claims := currentClaims(r); claims != nil {
			h.audits.Log(r.Context(), claims.Email, "tenant.create", tenant.ID)
		}
	}
	writeJSON(w, http.StatusCreated, tenant)
}

func (h *TenantsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.tenants.ListTenants(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "tenants.internal", "common.error.internal")
		return
	}
	if items == nil {
		items = []store.Tenant{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *TenantsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(pathParams(r)["id"])
	tenant, err := h.tenants.GetTenant(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "tenants.internal", "common.error.internal")
		return
	}
	if tenant == nil {
		writeError(w, http.StatusNotFound, "tenants.notFound", "tenants.error.notFound")
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

type tenantUpdateRequest struct {
	Name         string `json:"name" validate:"required"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
}

func (h *TenantsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(pathParams(r)["id"])
	var req tenantUpdateRequest
	if err := bindJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "tenants.invalid", "tenants.error.invalidPayload")
		return
	}
	tenant := &store.Tenant{ID: id, Name: req.Name, ContactEmail: req.ContactEmail}
	if err := h.tenants.UpdateTenant(r.Context(), tenant); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "tenants.notFound", "tenants.error.notFound")
			return
		}
		writeError(w, http.StatusInternalServerError, "tenants.internal", "common.error.internal")
		return
	}
	updated, err := h.tenants.GetTenant(r.Context(), id)
	if err != nil || updated == nil {
		writeError(w, http.StatusInternalServerError, "tenants.internal", "common.error.internal")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *TenantsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(pathParams(r)["id"])
	if err := h.tenants.SetTenantActive(r.Context(), id, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "tenants.notFound", "tenants.error.notFound")
			return
		}
		writeError(w, http.StatusInternalServerError, "tenants.internal", "common.error.internal")
		return
	}
	if h.audits != nil {
		if claims := currentClaims(r); claims != nil {
			h.audits.Log(r.Context(), claims.Email, "tenant.deactivate", id)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
