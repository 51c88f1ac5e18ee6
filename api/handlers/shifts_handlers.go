package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"medshift/core/store"
	"medshift/core/utils"
)

type ShiftsHandler struct {
	shifts store.ShiftsStore
	audits store.AuditStore
	logger *utils.Logger
}

func NewShiftsHandler(shifts store.ShiftsStore, audits store.AuditStore, logger *utils.Logger) *ShiftsHandler {
	return &ShiftsHandler{shifts: shifts, audits: audits, logger: logger}
}

type shiftRequest struct {
	StaffID  int64     `json:"staff_id" validate:"required,gt=0"`
	Role     string    `json:"role"`
	Location string    `json:"location"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
	Notes    string    `json:"notes"`
}

func (h *ShiftsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	var req shiftRequest
	if err := bindJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "shifts.invalid", "shifts.error.invalidPayload")
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		writeError(w, http.StatusBadRequest, "shifts.invalid", "shifts.error.endBeforeStart")
		return
	}
	shift := &store.Shift{
		TenantID:  claims.TenantID,
		StaffID:   req.StaffID,
		Role:      req.Role,
		Location:  req.Location,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		Notes:     req.Notes,
		CreatedBy: claims.UserID(),
	}
	if _, err := h.shifts.CreateShift(r.Context(), shift); err != nil {
		writeError(w, http.StatusInternalServerError, "shifts.internal", "common.error.internal")
		return
	}
	if h.audits != nil {
		h.audits.Log(r.Context(), claims.Email, "shift.create", fmt.Sprintf("%d|staff=%d", shift.ID, shift.StaffID))
	}
	writeJSON(w, http.StatusCreated, shift)
}

func (h *ShiftsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	q := r.URL.Query()
	filter := store.ShiftFilter{
		TenantID: claims.TenantID,
		StaffID:  parseID(q.Get("staffId")),
		Limit:    parseIntDefault(q.Get("limit"), 0),
	}
	if raw := q.Get("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = &t
		}
	}
	if raw := q.Get("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = &t
		}
	}
	items, err := h.shifts.ListShifts(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "shifts.internal", "common.error.internal")
		return
	}
	if items == nil {
		items = []store.Shift{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *ShiftsHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	shift, err := h.shifts.GetShift(r.Context(), claims.TenantID, parseID(pathParams(r)["id"]))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "shifts.internal", "common.error.internal")
		return
	}
	if shift == nil {
		writeError(w, http.StatusNotFound, "shifts.notFound", "shifts.error.notFound")
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (h *ShiftsHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	id := parseID(pathParams(r)["id"])
	var req shiftRequest
	if err := bindJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "shifts.invalid", "shifts.error.invalidPayload")
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		writeError(w, http.StatusBadRequest, "shifts.invalid", "shifts.error.endBeforeStart")
		return
	}
	shift := &store.Shift{
		ID:       id,
		TenantID: claims.TenantID,
		StaffID:  req.StaffID,
		Role:     req.Role,
		Location: req.Location,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		Notes:    req.Notes,
	}
	if err := h.shifts.UpdateShift(r.Context(), shift); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "shifts.notFound", "shifts.error.notFound")
			return
		}
		writeError(w, http.StatusInternalServerError, "shifts.internal", "common.error.internal")
		return
	}
	updated, err := h.shifts.GetShift(r.Context(), claims.TenantID, id)
	if err != nil || updated == nil {
		writeError(w, http.StatusInternalServerError, "shifts.internal", "common.error.internal")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ShiftsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	id := parseID(pathParams(r)["id"])
	if err := h.shifts.DeleteShift(r.Context(), claims.TenantID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "shifts.notFound", "shifts.error.notFound")
			return
		}
		writeError(w, http.StatusInternalServerError, "shifts.internal", "common.error.internal")
		return
	}
	if h.audits != nil {
		h.audits.Log(r.Context(), claims.Email, "shift.delete", fmt.Sprintf("%d", id))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
