package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type Shift struct {
	ID        int64     `json:"id"`
	TenantID  string    `json:"tenant_id"`
	StaffID   int64     `json:"staff_id"`
	Role      string    `json:"role,omitempty"`
	Location  string    `json:"location,omitempty"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Notes     string    `json:"notes,omitempty"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ShiftFilter struct {
	TenantID string
	StaffID  int64
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

type ShiftsStore interface {
	CreateShift(ctx context.Context, shift *Shift) (int64, error)
	GetShift(ctx context.Context, tenantID string, id int64) (*Shift, error)
	ListShifts(ctx context.Context, filter ShiftFilter) ([]Shift, error)
	UpdateShift(ctx context.Context, shift *Shift) error
	DeleteShift(ctx context.Context, tenantID string, id int64) error
}

type shiftsStore struct {
	db *sql.DB
}

func NewShiftsStore(db *sql.DB) ShiftsStore {
	return &shiftsStore{db: db}
}

const shiftColumns = `id, tenant_id, staff_id, role, location, starts_at, ends_at, notes, created_by, created_at, updated_at`

func (s *shiftsStore) CreateShift(ctx context.Context, shift *Shift) (int64, error) {
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO shifts(tenant_id, staff_id, role, location, starts_at, ends_at, notes, created_by, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?) RETURNING id`,
		shift.TenantID, shift.StaffID, shift.Role, shift.Location, shift.StartsAt.UTC(), shift.EndsAt.UTC(), shift.Notes, shift.CreatedBy, now, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	shift.ID = id
	shift.CreatedAt = now
	shift.UpdatedAt = now
	return id, nil
}

func (s *shiftsStore) GetShift(ctx context.Context, tenantID string, id int64) (*Shift, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE tenant_id=? AND id=?`, tenantID, id)
	var sh Shift
	if err := row.Scan(&sh.ID, &sh.TenantID, &sh.StaffID, &sh.Role, &sh.Location, &sh.StartsAt, &sh.EndsAt, &sh.Notes, &sh.CreatedBy, &sh.CreatedAt, &sh.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &sh, nil
}

func (s *shiftsStore) ListShifts(ctx context.Context, filter ShiftFilter) ([]Shift, error) {
	clauses := []string{"tenant_id=?"}
	args := []any{filter.TenantID}
	if filter.StaffID > 0 {
		clauses = append(clauses, "staff_id=?")
		args = append(args, filter.StaffID)
	}
	if filter.From != nil {
		clauses = append(clauses, "ends_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		clauses = append(clauses, "starts_at <= ?")
		args = append(args, filter.To.UTC())
	}
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY starts_at ASC, id ASC`
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
	var res []Shift
	for rows.Next() {
		var sh Shift
		if err := rows.Scan(&sh.ID, &sh.TenantID, &sh.StaffID, &sh.Role, &sh.Location, &sh.StartsAt, &sh.EndsAt, &sh.Notes, &sh.CreatedBy, &sh.CreatedAt, &sh.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, sh)
	}
	return res, rows.Err()
}

func (s *shiftsStore) UpdateShift(ctx context.Context, shift *Shift) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE shifts SET staff_id=?, role=?, location=?, starts_at=?, ends_at=?, notes=?, updated_at=?
		WHERE tenant_id=? AND id=?`,
		shift.StaffID, shift.Role, shift.Location, shift.StartsAt.UTC(), shift.EndsAt.UTC(), shift.Notes, time.Now().UTC(), shift.TenantID, shift.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *shiftsStore) DeleteShift(ctx context.Context, tenantID string, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shifts WHERE tenant_id=? AND id=?`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
