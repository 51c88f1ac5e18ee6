package incidents

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"medshift/config"
	"medshift/core/store"
	"medshift/core/utils"

	"github.com/gofrs/uuid/v5"
)

var (
	ErrNotFound   = store.ErrNotFound
	ErrValidation = errors.New("validation failed")
)

var validIncidentTypes = map[string]struct{}{
	"UNAUTHORIZED_ACCESS": {},
	"DATA_LOSS":           {},
	"IMPROPER_DISCLOSURE": {},
	"OTHER":               {},
}

var validStatuses = map[string]struct{}{
	"OPEN":        {},
	"IN_REVIEW":   {},
	"IN_PROGRESS": {},
	"RESOLVED":    {},
}

var validSteps = map[string]struct{}{
	"INITIAL_ASSESSMENT": {},
	"RISK_ANALYSIS":      {},
	"MITIGATION":         {},
	"NOTIFICATION":       {},
	"RESOLUTION":         {},
}

func ValidIncidentType(v string) bool { _, ok := validIncidentTypes[v]; return ok }
func ValidStatus(v string) bool       { _, ok := validStatuses[v]; return ok }
func ValidStep(v string) bool         { _, ok := validSteps[v]; return ok }

type Service struct {
	cfg    *config.AppConfig
	store  store.IncidentsStore
	audits store.AuditStore
	logger *utils.Logger
}

func NewService(cfg *config.AppConfig, st store.IncidentsStore, audits store.AuditStore, logger *utils.Logger) *Service {
	return &Service{cfg: cfg, store: st, audits: audits, logger: logger}
}

type CreateRequest struct {
	TenantID            string
	ReportedBy          int64
	Title               string
	Description         string
	IncidentType        string
	PHIDataTypes        []string
	IndividualsAffected *int
	OccurrenceDate      *time.Time
	DiscoveryDate       *time.Time
}

type SearchRequest struct {
	TenantID     string
	Search       string
	Status       string
	Step         string
	IncidentType string
	Page         int
	Limit        int
}

type SearchResult struct {
	Items      []store.Incident `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"totalPages"`
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*store.Incident, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title required", ErrValidation)
	}
	if !ValidIncidentType(req.IncidentType) {
		return nil, fmt.Errorf("%w: unknown incident type %q", ErrValidation, req.IncidentType)
	}
	incident := &store.Incident{
		TenantID:            req.TenantID,
		ReportedBy:          req.ReportedBy,
		Title:               strings.TrimSpace(req.Title),
		Description:         req.Description,
		IncidentType:        req.IncidentType,
		PHIDataTypes:        req.PHIDataTypes,
		IndividualsAffected: req.IndividualsAffected,
		OccurrenceDate:      req.OccurrenceDate,
		DiscoveryDate:       req.DiscoveryDate,
	}
	if _, err := s.store.CreateIncident(ctx, incident); err != nil {
		return nil, err
	}
	hydrateEmpty(incident)
	return incident, nil
}

func (s *Service) Get(ctx context.Context, tenantID string, id int64) (*store.Incident, error) {
	incident, err := s.store.GetIncident(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if incident == nil {
		return nil, ErrNotFound
	}
	if err := s.hydrate(ctx, incident); err != nil {
		return nil, err
	}
	return incident, nil
}

func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 {
		limit = s.cfg.Incidents.DefaultLimit
	}
	filter := store.IncidentFilter{
		TenantID:     req.TenantID,
		Search:       req.Search,
		Status:       req.Status,
		Step:         req.Step,
		IncidentType: req.IncidentType,
		Limit:        limit,
		Offset:       (page - 1) * limit,
	}
	total, err := s.store.CountIncidents(ctx, filter)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListIncidents(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.Incident{}
	}
	return &SearchResult{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// AdvanceStep appends the completed step to the workflow history and points
// current_step at it. Any step value is accepted in any order.
func (s *Service) AdvanceStep(ctx context.Context, tenantID string, id int64, step string, completedBy int64, notes string) (*store.Incident, error) {
	if !ValidStep(step) {
		return nil, fmt.Errorf("%w: unknown workflow step %q", ErrValidation, step)
	}
	entry := &store.WorkflowEntry{
		Step:        step,
		CompletedBy: completedBy,
		Notes:       notes,
	}
	if err := s.store.AdvanceIncidentStep(ctx, tenantID, id, entry, step); err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

func (s *Service) SetStatus(ctx context.Context, tenantID string, id int64, status string) (*store.Incident, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if err := s.store.SetIncidentStatus(ctx, tenantID, id, status); err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

// AttachmentPath is where the attachment's bytes live on disk.
func (s *Service) AttachmentPath(incidentID int64, attachmentID string) string {
	return filepath.Join(s.cfg.Incidents.UploadsDir, "incidents", fmt.Sprintf("%d", incidentID), attachmentID)
}

func (s *Service) AddAttachment(ctx context.Context, tenantID string, incidentID int64, name, contentType string, data []byte, uploadedBy int64) (*store.Incident, error) {
	incident, err := s.store.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		return nil, err
	}
	if incident == nil {
		return nil, ErrNotFound
	}
	attID, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	att := &store.IncidentAttachment{
		ID:          attID.String(),
		IncidentID:  incidentID,
		Name:        name,
		URL:         fmt.Sprintf("/uploads/incidents/%d/%s", incidentID, attID.String()),
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		UploadedBy:  uploadedBy,
	}
	path := s.AttachmentPath(incidentID, att.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, err
	}
	if err := s.store.AddIncidentAttachment(ctx, att); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	if s.audits != nil {
		s.audits.Log(ctx, fmt.Sprintf("user:%d", uploadedBy), "incident.attachment.upload", fmt.Sprintf("%d|%s", incidentID, att.ID))
	}
	return s.Get(ctx, tenantID, incidentID)
}

// DeleteAttachment removes the record, then deletes the file best effort. A
// missing file is logged and the operation still succeeds.
func (s *Service) DeleteAttachment(ctx context.Context, tenantID string, incidentID int64, attachmentID string) error {
	incident, err := s.store.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		return err
	}
	if incident == nil {
		return ErrNotFound
	}
	att, err := s.store.GetIncidentAttachment(ctx, incidentID, attachmentID)
	if err != nil {
		return err
	}
	if att == nil {
		return ErrNotFound
	}
	if err := s.store.DeleteIncidentAttachment(ctx, incidentID, attachmentID); err != nil {
		return err
	}
	if err := os.Remove(s.AttachmentPath(incidentID, attachmentID)); err != nil {
		if s.logger != nil {
			s.logger.Printf("attachment file removal skipped incident=%d att=%s: %v", incidentID, attachmentID, err)
		}
	}
	if s.audits != nil {
		s.audits.Log(ctx, "system", "incident.attachment.delete", fmt.Sprintf("%d|%s", incidentID, attachmentID))
	}
	return nil
}

// OpenAttachment returns the attachment record and its file contents.
func (s *Service) OpenAttachment(ctx context.Context, tenantID string, incidentID int64, attachmentID string) (*store.IncidentAttachment, []byte, error) {
	incident, err := s.store.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		return nil, nil, err
	}
	if incident == nil {
		return nil, nil, ErrNotFound
	}
	att, err := s.store.GetIncidentAttachment(ctx, incidentID, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	if att == nil {
		return nil, nil, ErrNotFound
	}
	data, err := os.ReadFile(s.AttachmentPath(incidentID, attachmentID))
	if err != nil {
		return nil, nil, err
	}
	return att, data, nil
}

func (s *Service) hydrate(ctx context.Context, incident *store.Incident) error {
	history, err := s.store.ListWorkflowHistory(ctx, incident.ID)
	if err != nil {
		return err
	}
	atts, err := s.store.ListIncidentAttachments(ctx, incident.ID)
	if err != nil {
		return err
	}
	incident.WorkflowHistory = history
	incident.Attachments = atts
	hydrateEmpty(incident)
	return nil
}

func hydrateEmpty(incident *store.Incident) {
	if incident.PHIDataTypes == nil {
		incident.PHIDataTypes = []string{}
	}
	if incident.WorkflowHistory == nil {
		incident.WorkflowHistory = []store.WorkflowEntry{}
	}
	if incident.Attachments == nil {
		incident.Attachments = []store.IncidentAttachment{}
	}
}
