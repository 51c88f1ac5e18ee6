package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

type Tenant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ContactEmail string    `json:"contact_email,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type TenantsStore interface {
	CreateTenant(ctx context.Context, tenant *Tenant) error
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	UpdateTenant(ctx context.Context, tenant *Tenant) error
	SetTenantActive(ctx context.Context, id string, active bool) error
}

type tenantsStore struct {
	db *sql.DB
}

func NewTenantsStore(db *sql.DB) TenantsStore {
	return &tenantsStore{db: db}
}

func (s *tenantsStore) CreateTenant(ctx context.Context, tenant *Tenant) error {
	tenant.ID = strings.ToLower(strings.TrimSpace(tenant.ID))
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants(id, name, contact_email, active, created_at, updated_at)
		VALUES(?,?,?,?,?,?)`,
		tenant.ID, tenant.Name, tenant.ContactEmail, boolToInt(true), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	tenant.Active = true
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	return nil
}

func (s *tenantsStore) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, contact_email, active, created_at, updated_at
		FROM tenants WHERE id=?`, strings.ToLower(strings.TrimSpace(id)))
	var t Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.ContactEmail, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *tenantsStore) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, contact_email, active, created_at, updated_at
		FROM tenants ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.ContactEmail, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (s *tenantsStore) UpdateTenant(ctx context.Context, tenant *Tenant) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tenants SET name=?, contact_email=?, updated_at=? WHERE id=?`,
		tenant.Name, tenant.ContactEmail, time.Now().UTC(), tenant.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *tenantsStore) SetTenantActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tenants SET active=?, updated_at=? WHERE id=?`,
		boolToInt(active), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
