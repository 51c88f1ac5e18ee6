package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"medshift/config"
	"medshift/core/incidents"
	"medshift/core/store"
	"medshift/core/utils"
)

type IncidentsHandler struct {
	cfg    *config.AppConfig
	svc    *incidents.Service
	audits store.AuditStore
	logger *utils.Logger
}

func NewIncidentsHandler(cfg *config.AppConfig, svc *incidents.Service, audits store.AuditStore, logger *utils.Logger) *IncidentsHandler {
	return &IncidentsHandler{cfg: cfg, svc: svc, audits: audits, logger: logger}
}

type createIncidentRequest struct {
	Title               string     `json:"title" validate:"required"`
	Description         string     `json:"description"`
	IncidentType        string     `json:"incident_type" validate:"required,oneof=UNAUTHORIZED_ACCESS DATA_LOSS IMPROPER_DISCLOSURE OTHER"`
	PHIDataTypes        []string   `json:"phi_data_types"`
	IndividualsAffected *int       `json:"individuals_affected"`
	OccurrenceDate      *time.Time `json:"occurrence_date"`
	DiscoveryDate       *time.Time `json:"discovery_date"`
}

func (h *IncidentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	var req createIncidentRequest
	if err := bindJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "incidents.invalid", "incidents.error.invalidPayload")
		return
	}
	incident, err := h.svc.Create(r.Context(), incidents.CreateRequest{
		TenantID:            claims.TenantID,
		ReportedBy:          claims.UserID(),
		Title:               req.Title,
		Description:         req.Description,
		IncidentType:        req.IncidentType,
		PHIDataTypes:        req.PHIDataTypes,
		IndividualsAffected: req.IndividualsAffected,
		OccurrenceDate:      req.OccurrenceDate,
		DiscoveryDate:       req.DiscoveryDate,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if h.audits != nil {
		h.audits.Log(r.Context(), claims.Email, "incident.create", fmt.Sprintf("%s|%d", claims.TenantID, incident.ID))
	}
	writeJSON(w, http.StatusCreated, incident)
}

func (h *IncidentsHandler) Search(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	q := r.URL.Query()
	result, err := h.svc.Search(r.Context(), incidents.SearchRequest{
		TenantID:     claims.TenantID,
		Search:       strings.TrimSpace(q.Get("search")),
		Status:       strings.TrimSpace(q.Get("status")),
		Step:         strings.TrimSpace(q.Get("currentStep")),
		IncidentType: strings.TrimSpace(q.Get("incidentType")),
		Page:         parseIntDefault(q.Get("page"), 1),
		Limit:        parseIntDefault(q.Get("limit"), 0),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *IncidentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	id := parseID(pathParams(r)["id"])
	if id == 0 {
		writeError(w, http.StatusBadRequest, "incidents.invalid", "incidents.error.invalidId")
		return
	}
	incident, err := h.svc.Get(r.Context(), claims.TenantID, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, incident)
}

type advanceStepRequest struct {
	Step  string `json:"step" validate:"required"`
	Notes string `json:"notes"`
}

func (h *IncidentsHandler) AdvanceStep(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	id := parseID(pathParams(r)["id"])
	if id == 0 {
		writeError(w, http.StatusBadRequest, "incidents.invalid", "incidents.error.invalidId")
		return
	}
	var req advanceStepRequest
	if err := bindJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "incidents.invalid", "incidents.error.invalidPayload")
		return
	}
	incident, err := h.svc.AdvanceStep(r.Context(), claims.TenantID, id, req.Step, claims.UserID(), req.Notes)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if h.audits != nil {
		h.audits.Log(r.Context(), claims.Email, "incident.step", fmt.Sprintf("%d|%s", id, req.Step))
	}
	writeJSON(w, http.StatusOK, incident)
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *IncidentsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	id := parseID(pathParams(r)["id"])
	if id == 0 {
		writeError(w, http.StatusBadRequest, "incidents.invalid", "incidents.error.invalidId")
		return
	}
	var req setStatusRequest
	if err := bindJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "incidents.invalid", "incidents.error.invalidPayload")
		return
	}
	incident, err := h.svc.SetStatus(r.Context(), claims.TenantID, id, req.Status)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if h.audits != nil {
		h.audits.Log(r.Context(), claims.Email, "incident.status", fmt.Sprintf("%d|%s", id, req.Status))
	}
	writeJSON(w, http.StatusOK, incident)
}

func (h *IncidentsHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	id := parseID(pathParams(r)["id"])
	if id == 0 {
		writeError(w, http.StatusBadRequest, "incidents.invalid", "incidents.error.invalidId")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Incidents.UploadMaxBytes)
	if err := r.ParseMultipartForm(h.cfg.Incidents.UploadMaxBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "incidents.uploadTooLarge", "incidents.error.uploadTooLarge")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "incidents.invalid", "incidents.error.missingFile")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "incidents.invalid", "incidents.error.unreadableFile")
		return
	}
	incident, err := h.svc.AddAttachment(r.Context(), claims.TenantID, id, header.Filename, header.Header.Get("Content-Type"), data, claims.UserID())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, incident)
}

func (h *IncidentsHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	params := pathParams(r)
	id := parseID(params["id"])
	attID := strings.TrimSpace(params["att_id"])
	if id == 0 || attID == "" {
		writeError(w, http.StatusBadRequest, "incidents.invalid", "incidents.error.invalidId")
		return
	}
	att, data, err := h.svc.OpenAttachment(r.Context(), claims.TenantID, id, attID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Name))
	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *IncidentsHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "auth.error.unauthorized")
		return
	}
	params := pathParams(r)
	id := parseID(params["id"])
	attID := strings.TrimSpace(params["att_id"])
	if id == 0 || attID == "" {
		writeError(w, http.StatusBadRequest, "incidents.invalid", "incidents.error.invalidId")
		return
	}
	if err := h.svc.DeleteAttachment(r.Context(), claims.TenantID, id, attID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "attachment deleted"})
}

func (h *IncidentsHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, incidents.ErrNotFound):
		writeError(w, http.StatusNotFound, "incidents.notFound", "incidents.error.notFound")
	case errors.Is(err, incidents.ErrValidation):
		writeError(w, http.StatusBadRequest, "incidents.invalid", "incidents.error.invalidPayload")
	default:
		if h.logger != nil {
			h.logger.Errorf("incidents: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "incidents.internal", "common.error.internal")
	}
}
