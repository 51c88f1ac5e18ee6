package handlers

import (
	"errors"
	"net/http"

	"medshift/core/rbac"
	"medshift/core/store"
	"medshift/core/utils"
)

type UsersHandler struct {
	users  store.UsersStore
	audits store.AuditStore
	logger *utils.Logger
}

func NewUsersHandler(users store.UsersStore, audits store.AuditStore, logger *utils.Logger) *UsersHandler {
	return &UsersHandler{users: users, audits: audits, logger: logger}
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	items, err := h.users.ListUsers(r.Context(), claims.TenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "users.internal", "common.error.internal")
		return
	}
	if items == nil {
		items = []store.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	user, err := h.users.GetUser(r.Context(), parseID(pathParams(r)["id"]))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "users.internal", "common.error.internal")
		return
	}
	// Cross-tenant reads are denied, not revealed.
	if user == nil || user.TenantID != claims.TenantID {
		writeError(w, http.StatusNotFound, "users.notFound", "users.error.notFound")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type userUpdateRequest struct {
	FullName string   `json:"full_name"`
	Roles    []string `json:"roles" validate:"required,min=1"`
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	id := parseID(pathParams(r)["id"])
	var req userUpdateRequest
	if err := bindJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "users.invalid", "users.error.invalidPayload")
		return
	}
	for _, role := range req.Roles {
		if !rbac.KnownRole(role) {
			writeError(w, http.StatusBadRequest, "users.invalid", "users.error.unknownRole")
			return
		}
	}
	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "users.internal", "common.error.internal")
		return
	}
	if user == nil || user.TenantID != claims.TenantID {
		writeError(w, http.StatusNotFound, "users.notFound", "users.error.notFound")
		return
	}
	user.FullName = req.FullName
	user.Roles = req.Roles
	if err := h.users.UpdateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "users.notFound", "users.error.notFound")
			return
		}
		writeError(w, http.StatusInternalServerError, "users.internal", "common.error.internal")
		return
	}
	if h.audits != nil {
		h.audits.Log(r.Context(), claims.Email, "user.update", user.Email)
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	id := parseID(pathParams(r)["id"])
	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "users.internal", "common.error.internal")
		return
	}
	if user == nil || user.TenantID != claims.TenantID {
		writeError(w, http.StatusNotFound, "users.notFound", "users.error.notFound")
		return
	}
	if err := h.users.SetUserActive(r.Context(), id, false); err != nil {
		writeError(w, http.StatusInternalServerError, "users.internal", "common.error.internal")
		return
	}
	if h.audits != nil {
		h.audits.Log(r.Context(), claims.Email, "user.deactivate", user.Email)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
