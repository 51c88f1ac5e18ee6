package timesheets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medshift/core/store"
	"medshift/core/utils"
)

var (
	ErrNotFound     = store.ErrNotFound
	ErrAlreadyOpen  = errors.New("an open timesheet already exists")
	ErrNotClockedIn = errors.New("no open timesheet")
)

type Service struct {
	store  store.TimesheetsStore
	audits store.AuditStore
	logger *utils.Logger
}

func NewService(st store.TimesheetsStore, audits store.AuditStore, logger *utils.Logger) *Service {
	return &Service{store: st, audits: audits, logger: logger}
}

// Summary is a closed timesheet with worked time already computed.
type Summary struct {
	store.Timesheet
	WorkedMinutes int `json:"worked_minutes"`
	BreakMinutes  int `json:"break_minutes"`
}

func (s *Service) ClockIn(ctx context.Context, tenantID string, staffID int64, shiftID *int64) (*store.Timesheet, error) {
	open, err := s.store.FindOpenTimesheet(ctx, tenantID, staffID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, ErrAlreadyOpen
	}
	ts := &store.Timesheet{
		TenantID: tenantID,
		StaffID:  staffID,
		ShiftID:  shiftID,
		ClockIn:  time.Now().UTC(),
	}
	if _, err := s.store.CreateTimesheet(ctx, ts); err != nil {
		return nil, err
	}
	if s.audits != nil {
		s.audits.Log(ctx, fmt.Sprintf("user:%d", staffID), "timesheet.clock_in", fmt.Sprintf("%s|%d", tenantID, ts.ID))
	}
	return ts, nil
}

func (s *Service) ClockOut(ctx context.Context, tenantID string, staffID int64) (*Summary, error) {
	open, err := s.store.FindOpenTimesheet(ctx, tenantID, staffID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrNotClockedIn
	}
	now := time.Now().UTC()
	// An unfinished break is closed at clock-out time.
	_ = s.store.EndBreak(ctx, open.ID, now)
	if err := s.store.CloseTimesheet(ctx, tenantID, open.ID, now); err != nil {
		return nil, err
	}
	open.ClockOut = &now
	if s.audits != nil {
		s.audits.Log(ctx, fmt.Sprintf("user:%d", staffID), "timesheet.clock_out", fmt.Sprintf("%s|%d", tenantID, open.ID))
	}
	return s.summarize(ctx, open)
}

func (s *Service) StartBreak(ctx context.Context, tenantID string, staffID int64) (*store.Timesheet, error) {
	open, err := s.store.FindOpenTimesheet(ctx, tenantID, staffID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrNotClockedIn
	}
	if _, err := s.store.StartBreak(ctx, open.ID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return open, nil
}

func (s *Service) EndBreak(ctx context.Context, tenantID string, staffID int64) (*store.Timesheet, error) {
	open, err := s.store.FindOpenTimesheet(ctx, tenantID, staffID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrNotClockedIn
	}
	if err := s.store.EndBreak(ctx, open.ID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return open, nil
}

func (s *Service) Get(ctx context.Context, tenantID string, id int64) (*Summary, error) {
	ts, err := s.store.GetTimesheet(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if ts == nil {
		return nil, ErrNotFound
	}
	return s.summarize(ctx, ts)
}

func (s *Service) List(ctx context.Context, tenantID string, staffID int64) ([]Summary, error) {
	items, err := s.store.ListTimesheets(ctx, tenantID, staffID)
	if err != nil {
		return nil, err
	}
	res := make([]Summary, 0, len(items))
	for i := range items {
		sum, err := s.summarize(ctx, &items[i])
		if err != nil {
			return nil, err
		}
		res = append(res, *sum)
	}
	return res, nil
}

func (s *Service) summarize(ctx context.Context, ts *store.Timesheet) (*Summary, error) {
	breaks, err := s.store.ListBreaks(ctx, ts.ID)
	if err != nil {
		return nil, err
	}
	ts.Breaks = breaks
	end := time.Now().UTC()
	if ts.ClockOut != nil {
		end = *ts.ClockOut
	}
	worked := end.Sub(ts.ClockIn)
	if worked < 0 {
		worked = 0
	}
	breakTotal := totalBreak(breaks, end)
	net := worked - breakTotal
	if net < 0 {
		net = 0
	}
	return &Summary{
		Timesheet:     *ts,
		WorkedMinutes: int(net / time.Minute),
		BreakMinutes:  int(breakTotal / time.Minute),
	}, nil
}

// totalBreak sums break durations. An open break counts up to end.
func totalBreak(breaks []store.TimesheetBreak, end time.Time) time.Duration {
	var total time.Duration
	for _, b := range breaks {
		stop := end
		if b.BreakEnd != nil {
			stop = *b.BreakEnd
		}
		if d := stop.Sub(b.BreakStart); d > 0 {
			total += d
		}
	}
	return total
}
