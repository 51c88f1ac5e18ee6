package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name,omitempty"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

type UsersStore interface {
	CreateUser(ctx context.Context, user *User) (int64, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, tenantID, email string) (*User, error)
	ListUsers(ctx context.Context, tenantID string) ([]User, error)
	UpdateUser(ctx context.Context, user *User) error
	SetUserPassword(ctx context.Context, id int64, passwordHash string) error
	SetUserActive(ctx context.Context, id int64, active bool) error
}

type usersStore struct {
	db *sql.DB
}

func NewUsersStore(db *sql.DB) UsersStore {
	return &usersStore{db: db}
}

const userColumns = `id, tenant_id, email, full_name, password_hash, roles, active, created_at, updated_at`

func (s *usersStore) CreateUser(ctx context.Context, user *User) (int64, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.Roles = normalizeRoles(user.Roles)
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users(tenant_id, email, full_name, password_hash, roles, active, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?) RETURNING id`,
		user.TenantID, user.Email, user.FullName, user.PasswordHash, listToJSON(user.Roles), boolToInt(true), now, now).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	user.ID = id
	user.Active = true
	user.CreatedAt = now
	user.UpdatedAt = now
	return id, nil
}

func (s *usersStore) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	return scanUser(row)
}

func (s *usersStore) GetUserByEmail(ctx context.Context, tenantID, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE tenant_id=? AND email=?`,
		tenantID, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func (s *usersStore) ListUsers(ctx context.Context, tenantID string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE tenant_id=? ORDER BY id ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		var u User
		var rolesRaw string
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Email, &u.FullName, &u.PasswordHash, &rolesRaw, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(rolesRaw), &u.Roles)
		res = append(res, u)
	}
	return res, rows.Err()
}

func (s *usersStore) UpdateUser(ctx context.Context, user *User) error {
	user.Roles = normalizeRoles(user.Roles)
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET full_name=?, roles=?, updated_at=? WHERE id=?`,
		user.FullName, listToJSON(user.Roles), time.Now().UTC(), user.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *usersStore) SetUserPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=?, updated_at=? WHERE id=?`,
		passwordHash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *usersStore) SetUserActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET active=?, updated_at=? WHERE id=?`,
		boolToInt(active), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var rolesRaw string
	if err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.FullName, &u.PasswordHash, &rolesRaw, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	_ = json.Unmarshal([]byte(rolesRaw), &u.Roles)
	return &u, nil
}

func normalizeRoles(roles []string) []string {
	var out []string
	for _, raw := range roles {
		clean := strings.ToUpper(strings.TrimSpace(raw))
		if clean == "" {
			continue
		}
		out = append(out, clean)
	}
	return out
}
