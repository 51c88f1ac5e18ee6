package store

import (
	"context"
	"database/sql"
	"time"
)

type Timesheet struct {
	ID        int64            `json:"id"`
	TenantID  string           `json:"tenant_id"`
	StaffID   int64            `json:"staff_id"`
	ShiftID   *int64           `json:"shift_id,omitempty"`
	ClockIn   time.Time        `json:"clock_in"`
	ClockOut  *time.Time       `json:"clock_out,omitempty"`
	Breaks    []TimesheetBreak `json:"breaks,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type TimesheetBreak struct {
	ID          int64      `json:"id"`
	TimesheetID int64      `json:"timesheet_id"`
	BreakStart  time.Time  `json:"break_start"`
	BreakEnd    *time.Time `json:"break_end,omitempty"`
}

type TimesheetsStore interface {
	CreateTimesheet(ctx context.Context, ts *Timesheet) (int64, error)
	GetTimesheet(ctx context.Context, tenantID string, id int64) (*Timesheet, error)
	FindOpenTimesheet(ctx context.Context, tenantID string, staffID int64) (*Timesheet, error)
	ListTimesheets(ctx context.Context, tenantID string, staffID int64) ([]Timesheet, error)
	CloseTimesheet(ctx context.Context, tenantID string, id int64, clockOut time.Time) error
	StartBreak(ctx context.Context, timesheetID int64, at time.Time) (int64, error)
	EndBreak(ctx context.Context, timesheetID int64, at time.Time) error
	ListBreaks(ctx context.Context, timesheetID int64) ([]TimesheetBreak, error)
}

type timesheetsStore struct {
	db *sql.DB
}

func NewTimesheetsStore(db *sql.DB) TimesheetsStore {
	return &timesheetsStore{db: db}
}

const timesheetColumns = `id, tenant_id, staff_id, shift_id, clock_in, clock_out, created_at, updated_at`

func (s *timesheetsStore) CreateTimesheet(ctx context.Context, ts *Timesheet) (int64, error) {
	now := time.Now().UTC()
	if ts.ClockIn.IsZero() {
		ts.ClockIn = now
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO timesheets(tenant_id, staff_id, shift_id, clock_in, clock_out, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?) RETURNING id`,
		ts.TenantID, ts.StaffID, nullableID(ts.ShiftID), ts.ClockIn.UTC(), nil, now, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	ts.ID = id
	ts.CreatedAt = now
	ts.UpdatedAt = now
	return id, nil
}

func (s *timesheetsStore) GetTimesheet(ctx context.Context, tenantID string, id int64) (*Timesheet, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+timesheetColumns+` FROM timesheets WHERE tenant_id=? AND id=?`, tenantID, id)
	return scanTimesheet(row)
}

// FindOpenTimesheet returns the staff member's timesheet with no clock-out
// yet, or nil when none is open.
func (s *timesheetsStore) FindOpenTimesheet(ctx context.Context, tenantID string, staffID int64) (*Timesheet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+timesheetColumns+` FROM timesheets
		WHERE tenant_id=? AND staff_id=? AND clock_out IS NULL
		ORDER BY clock_in DESC LIMIT 1`, tenantID, staffID)
	return scanTimesheet(row)
}

func (s *timesheetsStore) ListTimesheets(ctx context.Context, tenantID string, staffID int64) ([]Timesheet, error) {
	query := `SELECT ` + timesheetColumns + ` FROM timesheets WHERE tenant_id=?`
	args := []any{tenantID}
	if staffID > 0 {
		query += ` AND staff_id=?`
		args = append(args, staffID)
	}
	query += ` ORDER BY clock_in DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Timesheet
	for rows.Next() {
		var ts Timesheet
		var shiftID sql.NullInt64
		var out sql.NullTime
		if err := rows.Scan(&ts.ID, &ts.TenantID, &ts.StaffID, &shiftID, &ts.ClockIn, &out, &ts.CreatedAt, &ts.UpdatedAt); err != nil {
			return nil, err
		}
		if shiftID.Valid {
			ts.ShiftID = &shiftID.Int64
		}
		if out.Valid {
			ts.ClockOut = &out.Time
		}
		res = append(res, ts)
	}
	return res, rows.Err()
}

func (s *timesheetsStore) CloseTimesheet(ctx context.Context, tenantID string, id int64, clockOut time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE timesheets SET clock_out=?, updated_at=? WHERE tenant_id=? AND id=? AND clock_out IS NULL`,
		clockOut.UTC(), time.Now().UTC(), tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *timesheetsStore) StartBreak(ctx context.Context, timesheetID int64, at time.Time) (int64, error) {
	var open int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM timesheet_breaks WHERE timesheet_id=? AND break_end IS NULL`, timesheetID).Scan(&open); err != nil {
		return 0, err
	}
	if open > 0 {
		return 0, ErrConflict
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO timesheet_breaks(timesheet_id, break_start, break_end) VALUES(?,?,?) RETURNING id`,
		timesheetID, at.UTC(), nil).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *timesheetsStore) EndBreak(ctx context.Context, timesheetID int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE timesheet_breaks SET break_end=? WHERE timesheet_id=? AND break_end IS NULL`,
		at.UTC(), timesheetID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *timesheetsStore) ListBreaks(ctx context.Context, timesheetID int64) ([]TimesheetBreak, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timesheet_id, break_start, break_end
		FROM timesheet_breaks WHERE timesheet_id=? ORDER BY break_start ASC, id ASC`, timesheetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []TimesheetBreak
	for rows.Next() {
		var b TimesheetBreak
		var end sql.NullTime
		if err := rows.Scan(&b.ID, &b.TimesheetID, &b.BreakStart, &end); err != nil {
			return nil, err
		}
		if end.Valid {
			b.BreakEnd = &end.Time
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

func scanTimesheet(row *sql.Row) (*Timesheet, error) {
	var ts Timesheet
	var shiftID sql.NullInt64
	var out sql.NullTime
	if err := row.Scan(&ts.ID, &ts.TenantID, &ts.StaffID, &shiftID, &ts.ClockIn, &out, &ts.CreatedAt, &ts.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if shiftID.Valid {
		ts.ShiftID = &shiftID.Int64
	}
	if out.Valid {
		ts.ClockOut = &out.Time
	}
	return &ts, nil
}
