package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Incident struct {
	ID                  int64           `json:"id"`
	TenantID            string          `json:"tenant_id"`
	ReportedBy          int64           `json:"reported_by"`
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	IncidentType        string          `json:"incident_type"`
	PHIDataTypes        []string        `json:"phi_data_types"`
	IndividualsAffected *int            `json:"individuals_affected,omitempty"`
	OccurrenceDate      *time.Time      `json:"occurrence_date,omitempty"`
	DiscoveryDate       *time.Time      `json:"discovery_date,omitempty"`
	Status              string          `json:"status"`
	CurrentStep         string          `json:"current_step"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`

	// Filled in by the incidents service on single-record reads.
	WorkflowHistory []WorkflowEntry      `json:"workflow_history"`
	Attachments     []IncidentAttachment `json:"attachments"`
}

type WorkflowEntry struct {
	ID          int64     `json:"id"`
	IncidentID  int64     `json:"incident_id"`
	Step        string    `json:"step"`
	CompletedBy int64     `json:"completed_by"`
	CompletedAt time.Time `json:"completed_at"`
	Notes       string    `json:"notes,omitempty"`
}

type IncidentAttachment struct {
	ID          string    `json:"id"`
	IncidentID  int64     `json:"incident_id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedBy  int64     `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type IncidentFilter struct {
	TenantID     string
	Search       string
	Status       string
	IncidentType string
	Step         string
	ReportedBy   int64
	Limit        int
	Offset       int
}

type IncidentsStore interface {
	CreateIncident(ctx context.Context, incident *Incident) (int64, error)
	GetIncident(ctx context.Context, tenantID string, id int64) (*Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error)
	CountIncidents(ctx context.Context, filter IncidentFilter) (int, error)
	AdvanceIncidentStep(ctx context.Context, tenantID string, id int64, entry *WorkflowEntry, nextStep string) error
	SetIncidentStatus(ctx context.Context, tenantID string, id int64, status string) error
	ListWorkflowHistory(ctx context.Context, incidentID int64) ([]WorkflowEntry, error)

	AddIncidentAttachment(ctx context.Context, att *IncidentAttachment) error
	GetIncidentAttachment(ctx context.Context, incidentID int64, attachmentID string) (*IncidentAttachment, error)
	ListIncidentAttachments(ctx context.Context, incidentID int64) ([]IncidentAttachment, error)
	DeleteIncidentAttachment(ctx context.Context, incidentID int64, attachmentID string) error
}

type incidentsStore struct {
	db *sql.DB
}

func NewIncidentsStore(db *sql.DB) IncidentsStore {
	return &incidentsStore{db: db}
}

func (s *incidentsStore) CreateIncident(ctx context.Context, incident *Incident) (int64, error) {
	if strings.TrimSpace(incident.Status) == "" {
		incident.Status = "OPEN"
	}
	if strings.TrimSpace(incident.CurrentStep) == "" {
		incident.CurrentStep = "INITIAL_ASSESSMENT"
	}
	incident.PHIDataTypes = normalizeList(incident.PHIDataTypes)
	now := time.Now().UTC()
	// RETURNING works on both postgres and the sqlite test runtime, unlike
	// LastInsertId which the pgx driver does not support.
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO incidents(tenant_id, reported_by, title, description, incident_type, phi_data_types, individuals_affected, occurrence_date, discovery_date, status, current_step, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?) RETURNING id`,
		incident.TenantID, incident.ReportedBy, incident.Title, incident.Description, incident.IncidentType, listToJSON(incident.PHIDataTypes), nullableInt(incident.IndividualsAffected), nullableTime(incident.OccurrenceDate), nullableTime(incident.DiscoveryDate), incident.Status, incident.CurrentStep, now, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	incident.ID = id
	incident.CreatedAt = now
	incident.UpdatedAt = now
	return id, nil
}

func (s *incidentsStore) GetIncident(ctx context.Context, tenantID string, id int64) (*Incident, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, reported_by, title, description, incident_type, phi_data_types, individuals_affected, occurrence_date, discovery_date, status, current_step, created_at, updated_at
		FROM incidents WHERE tenant_id=? AND id=?`, tenantID, id)
	return s.scanIncident(row)
}

func buildIncidentClauses(filter IncidentFilter) ([]string, []any) {
	clauses := []string{"tenant_id=?"}
	args := []any{filter.TenantID}
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	if filter.IncidentType != "" {
		clauses = append(clauses, "incident_type=?")
		args = append(args, filter.IncidentType)
	}
	if filter.Step != "" {
		clauses = append(clauses, "current_step=?")
		args = append(args, filter.Step)
	}
	if filter.ReportedBy > 0 {
		clauses = append(clauses, "reported_by=?")
		args = append(args, filter.ReportedBy)
	}
	if filter.Search != "" {
		clauses = append(clauses, "(title LIKE ? OR description LIKE ?)")
		q := "%" + filter.Search + "%"
		args = append(args, q, q)
	}
	return clauses, args
}

func (s *incidentsStore) ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error) {
	clauses, args := buildIncidentClauses(filter)
	query := `SELECT id, tenant_id, reported_by, title, description, incident_type, phi_data_types, individuals_affected, occurrence_date, discovery_date, status, current_step, created_at, updated_at FROM incidents`
	query += " WHERE " + strings.Join(clauses, " AND ")
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Incident
	for rows.Next() {
		incident, err := s.scanIncidentRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, incident)
	}
	return res, rows.Err()
}

func (s *incidentsStore) CountIncidents(ctx context.Context, filter IncidentFilter) (int, error) {
	clauses, args := buildIncidentClauses(filter)
	query := "SELECT COUNT(*) FROM incidents WHERE " + strings.Join(clauses, " AND ")
	var total int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// AdvanceIncidentStep records the entry in the workflow history and moves the
// incident to nextStep in one transaction. No ordering is enforced between
// steps, repeats and skips are recorded as given.
func (s *incidentsStore) AdvanceIncidentStep(ctx context.Context, tenantID string, id int64, entry *WorkflowEntry, nextStep string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = now
	}
	res, err := tx.ExecContext(ctx, `UPDATE incidents SET current_step=?, updated_at=? WHERE tenant_id=? AND id=?`,
		nextStep, now, tenantID, id)
	if err != nil {
		tx.Rollback()
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return ErrNotFound
	}
	if err := tx.QueryRowContext(ctx, `INSERT INTO incident_workflow_history(incident_id, step, completed_by, completed_at, notes) VALUES(?,?,?,?,?) RETURNING id`,
		id, entry.Step, entry.CompletedBy, entry.CompletedAt, entry.Notes).Scan(&entry.ID); err != nil {
		tx.Rollback()
		return err
	}
	entry.IncidentID = id
	return tx.Commit()
}

func (s *incidentsStore) SetIncidentStatus(ctx context.Context, tenantID string, id int64, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE incidents SET status=?, updated_at=? WHERE tenant_id=? AND id=?`,
		status, time.Now().UTC(), tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *incidentsStore) ListWorkflowHistory(ctx context.Context, incidentID int64) ([]WorkflowEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_id, step, completed_by, completed_at, notes
		FROM incident_workflow_history WHERE incident_id=? ORDER BY id ASC`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []WorkflowEntry
	for rows.Next() {
		var e WorkflowEntry
		if err := rows.Scan(&e.ID, &e.IncidentID, &e.Step, &e.CompletedBy, &e.CompletedAt, &e.Notes); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (s *incidentsStore) AddIncidentAttachment(ctx context.Context, att *IncidentAttachment) error {
	if att.UploadedAt.IsZero() {
		att.UploadedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incident_attachments(id, incident_id, name, url, content_type, size_bytes, uploaded_by, uploaded_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		att.ID, att.IncidentID, att.Name, att.URL, att.ContentType, att.SizeBytes, att.UploadedBy, att.UploadedAt)
	return err
}

func (s *incidentsStore) GetIncidentAttachment(ctx context.Context, incidentID int64, attachmentID string) (*IncidentAttachment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, incident_id, name, url, content_type, size_bytes, uploaded_by, uploaded_at
		FROM incident_attachments WHERE incident_id=? AND id=?`, incidentID, attachmentID)
	var att IncidentAttachment
	if err := row.Scan(&att.ID, &att.IncidentID, &att.Name, &att.URL, &att.ContentType, &att.SizeBytes, &att.UploadedBy, &att.UploadedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &att, nil
}

func (s *incidentsStore) ListIncidentAttachments(ctx context.Context, incidentID int64) ([]IncidentAttachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_id, name, url, content_type, size_bytes, uploaded_by, uploaded_at
		FROM incident_attachments WHERE incident_id=? ORDER BY uploaded_at ASC, id ASC`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []IncidentAttachment
	for rows.Next() {
		var att IncidentAttachment
		if err := rows.Scan(&att.ID, &att.IncidentID, &att.Name, &att.URL, &att.ContentType, &att.SizeBytes, &att.UploadedBy, &att.UploadedAt); err != nil {
			return nil, err
		}
		res = append(res, att)
	}
	return res, rows.Err()
}

func (s *incidentsStore) DeleteIncidentAttachment(ctx context.Context, incidentID int64, attachmentID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM incident_attachments WHERE incident_id=? AND id=?`, incidentID, attachmentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *incidentsStore) scanIncident(row *sql.Row) (*Incident, error) {
	var inc Incident
	var affected sql.NullInt64
	var occurred sql.NullTime
	var discovered sql.NullTime
	var phiRaw string
	if err := row.Scan(&inc.ID, &inc.TenantID, &inc.ReportedBy, &inc.Title, &inc.Description, &inc.IncidentType, &phiRaw, &affected, &occurred, &discovered, &inc.Status, &inc.CurrentStep, &inc.CreatedAt, &inc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if affected.Valid {
		n := int(affected.Int64)
		inc.IndividualsAffected = &n
	}
	if occurred.Valid {
		inc.OccurrenceDate = &occurred.Time
	}
	if discovered.Valid {
		inc.DiscoveryDate = &discovered.Time
	}
	_ = json.Unmarshal([]byte(phiRaw), &inc.PHIDataTypes)
	inc.PHIDataTypes = normalizeList(inc.PHIDataTypes)
	return &inc, nil
}

func (s *incidentsStore) scanIncidentRow(rows *sql.Rows) (Incident, error) {
	var inc Incident
	var affected sql.NullInt64
	var occurred sql.NullTime
	var discovered sql.NullTime
	var phiRaw string
	if err := rows.Scan(&inc.ID, &inc.TenantID, &inc.ReportedBy, &inc.Title, &inc.Description, &inc.IncidentType, &phiRaw, &affected, &occurred, &discovered, &inc.Status, &inc.CurrentStep, &inc.CreatedAt, &inc.UpdatedAt); err != nil {
		return inc, err
	}
	if affected.Valid {
		n := int(affected.Int64)
		inc.IndividualsAffected = &n
	}
	if occurred.Valid {
		inc.OccurrenceDate = &occurred.Time
	}
	if discovered.Valid {
		inc.DiscoveryDate = &discovered.Time
	}
	_ = json.Unmarshal([]byte(phiRaw), &inc.PHIDataTypes)
	inc.PHIDataTypes = normalizeList(inc.PHIDataTypes)
	return inc, nil
}
