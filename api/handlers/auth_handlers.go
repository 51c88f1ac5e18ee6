package handlers

import (
	"net/http"
	"time"

	"medshift/config"
	"medshift/core/auth"
	"medshift/core/rbac"
	"medshift/core/store"
	"medshift/core/utils"
)

type AuthHandler struct {
	cfg     *config.AppConfig
	users   store.UsersStore
	tenants store.TenantsStore
	tokens  *auth.TokenManager
	audits  store.AuditStore
	logger  *utils.Logger
}

func NewAuthHandler(cfg *config.AppConfig, users store.UsersStore, tenants store.TenantsStore, tokens *auth.TokenManager, audits store.AuditStore, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users, tenants: tenants, tokens: tokens, audits: audits, logger: logger}
}

type loginRequest struct {
	TenantID string `json:"tenant_id" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := bindJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "auth.invalid", "auth.error.invalidPayload")
		return
	}
	user, err := h.users.GetUserByEmail(r.Context(), req.TenantID, req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "auth.internal", "common.error.internal")
		return
	}
	if user == nil || !user.Active {
		if h.audits != nil {
			h.audits.Log(r.Context(), req.Email, "auth.login_failed", "user missing or inactive")
		}
		writeError(w, http.StatusUnauthorized, "auth.badCredentials", "auth.error.badCredentials")
		return
	}
	match, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		if h.audits != nil {
			h.audits.Log(r.Context(), req.Email, "auth.login_failed", "invalid password")
		}
		writeError(w, http.StatusUnauthorized, "auth.badCredentials", "auth.error.badCredentials")
		return
	}
	token, err := h.tokens.Issue(user.ID, user.TenantID, user.Email, user.Roles, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "auth.internal", "common.error.internal")
		return
	}
	if h.audits != nil {
		h.audits.Log(r.Context(), user.Email, "auth.login", user.TenantID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

type bootstrapRequest struct {
	TenantID   string `json:"tenant_id" validate:"required"`
	TenantName string `json:"tenant_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	FullName   string `json:"full_name"`
	Password   string `json:"password" validate:"required,min=8"`
}

// Bootstrap creates the first tenant and its admin account. Refused once
// any tenant exists.
func (h *AuthHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	existing, err := h.tenants.ListTenants(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "auth.internal", "common.error.internal")
		return
	}
	if len(existing) > 0 {
		writeError(w, http.StatusConflict, "auth.alreadyBootstrapped", "auth.error.alreadyBootstrapped")
		return
	}
	var req bootstrapRequest
	if err := bindJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "auth.invalid", "auth.error.invalidPayload")
		return
	}
	tenant := &store.Tenant{ID: req.TenantID, Name: req.TenantName}
	if err := h.tenants.CreateTenant(r.Context(), tenant); err != nil {
		writeError(w, http.StatusInternalServerError, "auth.internal", "common.error.internal")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "auth.internal", "common.error.internal")
		return
	}
	user := &store.User{
		TenantID:     tenant.ID,
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: hash,
		Roles:        []string{rbac.RoleAdmin},
	}
	if _, err := h.users.CreateUser(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "auth.internal", "common.error.internal")
		return
	}
	if h.audits != nil {
		h.audits.Log(r.Context(), user.Email, "auth.bootstrap", tenant.ID)
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"tenant": tenant,
		"user":   user,
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	user, err := h.users.GetUser(r.Context(), claims.UserID())
	if err != nil || user == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
