package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

type Invite struct {
	ID         int64      `json:"id"`
	TenantID   string     `json:"tenant_id"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	Token      string     `json:"-"`
	InvitedBy  int64      `json:"invited_by"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (i *Invite) Pending(now time.Time) bool {
	return i.AcceptedAt == nil && i.RevokedAt == nil && now.Before(i.ExpiresAt)
}

type InvitesStore interface {
	CreateInvite(ctx context.Context, invite *Invite) (int64, error)
	GetInviteByToken(ctx context.Context, token string) (*Invite, error)
	ListInvites(ctx context.Context, tenantID string) ([]Invite, error)
	MarkInviteAccepted(ctx context.Context, id int64) error
	RevokeInvite(ctx context.Context, tenantID string, id int64) error
	PurgeExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error)
}

type invitesStore struct {
	db *sql.DB
}

func NewInvitesStore(db *sql.DB) InvitesStore {
	return &invitesStore{db: db}
}

const inviteColumns = `id, tenant_id, email, role, token, invited_by, expires_at, accepted_at, revoked_at, created_at`

func (s *invitesStore) CreateInvite(ctx context.Context, invite *Invite) (int64, error) {
	invite.Email = strings.ToLower(strings.TrimSpace(invite.Email))
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO invites(tenant_id, email, role, token, invited_by, expires_at, accepted_at, revoked_at, created_at)
		VALUES(?,?,?,?,?,?,?,?,?) RETURNING id`,
		invite.TenantID, invite.Email, invite.Role, invite.Token, invite.InvitedBy, invite.ExpiresAt.UTC(), nil, nil, now).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	invite.ID = id
	invite.CreatedAt = now
	return id, nil
}

func (s *invitesStore) GetInviteByToken(ctx context.Context, token string) (*Invite, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invites WHERE token=?`, token)
	return scanInvite(row)
}

func (s *invitesStore) ListInvites(ctx context.Context, tenantID string) ([]Invite, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+inviteColumns+` FROM invites WHERE tenant_id=? ORDER BY id DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Invite
	for rows.Next() {
		var inv Invite
		var accepted, revoked sql.NullTime
		if err := rows.Scan(&inv.ID, &inv.TenantID, &inv.Email, &inv.Role, &inv.Token, &inv.InvitedBy, &inv.ExpiresAt, &accepted, &revoked, &inv.CreatedAt); err != nil {
			return nil, err
		}
		if accepted.Valid {
			inv.AcceptedAt = &accepted.Time
		}
		if revoked.Valid {
			inv.RevokedAt = &revoked.Time
		}
		res = append(res, inv)
	}
	return res, rows.Err()
}

func (s *invitesStore) MarkInviteAccepted(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE invites SET accepted_at=? WHERE id=? AND accepted_at IS NULL AND revoked_at IS NULL`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *invitesStore) RevokeInvite(ctx context.Context, tenantID string, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE invites SET revoked_at=? WHERE tenant_id=? AND id=? AND accepted_at IS NULL AND revoked_at IS NULL`,
		time.Now().UTC(), tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeExpiredInvites removes invites that expired before cutoff and were
// never accepted. Called by the retention worker.
func (s *invitesStore) PurgeExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM invites WHERE accepted_at IS NULL AND expires_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanInvite(row *sql.Row) (*Invite, error) {
	var inv Invite
	var accepted, revoked sql.NullTime
	if err := row.Scan(&inv.ID, &inv.TenantID, &inv.Email, &inv.Role, &inv.Token, &inv.InvitedBy, &inv.ExpiresAt, &accepted, &revoked, &inv.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if accepted.Valid {
		inv.AcceptedAt = &accepted.Time
	}
	if revoked.Valid {
		inv.RevokedAt = &revoked.Time
	}
	return &inv, nil
}
