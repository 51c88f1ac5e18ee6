package handlers

import (
	"errors"
	"net/http"

	"medshift/core/timesheets"
	"medshift/core/utils"
)

type TimesheetsHandler struct {
	svc    *timesheets.Service
	logger *utils.Logger
}

func NewTimesheetsHandler(svc *timesheets.Service, logger *utils.Logger) *TimesheetsHandler {
	return &TimesheetsHandler{svc: svc, logger: logger}
}

type clockInRequest struct {
	ShiftID *int64 `json:"shift_id"`
}

func (h *TimesheetsHandler) ClockIn(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	var req clockInRequest
	// Body is optional for clock-in.
	_ = bindJSON(r, &req)
	ts, err := h.svc.ClockIn(r.Context(), claims.TenantID, claims.UserID(), req.ShiftID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ts)
}

func (h *TimesheetsHandler) ClockOut(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	summary, err := h.svc.ClockOut(r.Context(), claims.TenantID, claims.UserID())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *TimesheetsHandler) StartBreak(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	ts, err := h.svc.StartBreak(r.Context(), claims.TenantID, claims.UserID())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (h *TimesheetsHandler) EndBreak(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	ts, err := h.svc.EndBreak(r.Context(), claims.TenantID, claims.UserID())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (h *TimesheetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	summary, err := h.svc.Get(r.Context(), claims.TenantID, parseID(pathParams(r)["id"]))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *TimesheetsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	staffID := parseID(r.URL.Query().Get("staffId"))
	items, err := h.svc.List(r.Context(), claims.TenantID, staffID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []timesheets.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *TimesheetsHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timesheets.ErrNotFound):
		writeError(w, http.StatusNotFound, "timesheets.notFound", "timesheets.error.notFound")
	case errors.Is(err, timesheets.ErrAlreadyOpen):
		writeError(w, http.StatusConflict, "timesheets.alreadyOpen", "timesheets.error.alreadyClockedIn")
	case errors.Is(err, timesheets.ErrNotClockedIn):
		writeError(w, http.StatusConflict, "timesheets.notClockedIn", "timesheets.error.notClockedIn")
	default:
		if h.logger != nil {
			h.logger.Errorf("timesheets: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "timesheets.internal", "common.error.internal")
	}
}
