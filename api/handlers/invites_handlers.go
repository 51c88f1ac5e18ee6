package handlers

import (
	"errors"
	"net/http"

	"medshift/core/invites"
	"medshift/core/store"
	"medshift/core/utils"
)

type InvitesHandler struct {
	svc    *invites.Service
	logger *utils.Logger
}

func NewInvitesHandler(svc *invites.Service, logger *utils.Logger) *InvitesHandler {
	return &InvitesHandler{svc: svc, logger: logger}
}

type createInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
}

func (h *InvitesHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	var req createInviteRequest
	if err := bindJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invites.invalid", "invites.error.invalidPayload")
		return
	}
	invite, err := h.svc.Create(r.Context(), claims.TenantID, req.Email, req.Role, claims.UserID())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	// the token is returned once, so the link can be handed out when
	// mail delivery is off
	writeJSON(w, http.StatusCreated, map[string]any{"invite": invite, "token": invite.Token})
}

func (h *InvitesHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	items, err := h.svc.List(r.Context(), claims.TenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "invites.internal", "common.error.internal")
		return
	}
	if items == nil {
		items = []store.Invite{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type acceptInviteRequest struct {
	Token    string `json:"token" validate:"required"`
	FullName string `json:"full_name"`
	Password string `json:"password" validate:"required,min=8"`
}

// Accept is unauthenticated, the token is the credential.
func (h *InvitesHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req acceptInviteRequest
	if err := bindJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invites.invalid", "invites.error.invalidPayload")
		return
	}
	user, err := h.svc.Accept(r.Context(), req.Token, req.FullName, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *InvitesHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	id := parseID(pathParams(r)["id"])
	if id == 0 {
		writeError(w, http.StatusBadRequest, "invites.invalid", "invites.error.invalidId")
		return
	}
	if err := h.svc.Revoke(r.Context(), claims.TenantID, id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *InvitesHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, invites.ErrNotFound):
		writeError(w, http.StatusNotFound, "invites.notFound", "invites.error.notFound")
	case errors.Is(err, invites.ErrExpired):
		writeError(w, http.StatusGone, "invites.expired", "invites.error.expired")
	case errors.Is(err, invites.ErrConsumed):
		writeError(w, http.StatusConflict, "invites.consumed", "invites.error.alreadyUsed")
	case errors.Is(err, invites.ErrValidation):
		writeError(w, http.StatusBadRequest, "invites.invalid", "invites.error.invalidPayload")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "invites.conflict", "invites.error.conflict")
	default:
		if h.logger != nil {
			h.logger.Errorf("invites: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "invites.internal", "common.error.internal")
	}
}
