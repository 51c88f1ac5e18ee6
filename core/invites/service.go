package invites

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medshift/config"
	"medshift/core/auth"
	"medshift/core/rbac"
	"medshift/core/store"
	"medshift/core/utils"
)

var (
	ErrNotFound   = store.ErrNotFound
	ErrExpired    = errors.New("invite expired")
	ErrConsumed   = errors.New("invite already used")
	ErrValidation = errors.New("validation failed")
)

type Service struct {
	cfg     *config.AppConfig
	store   store.InvitesStore
	users   store.UsersStore
	tenants store.TenantsStore
	sender  Sender
	audits  store.AuditStore
	logger  *utils.Logger
}

func NewService(cfg *config.AppConfig, st store.InvitesStore, users store.UsersStore, tenants store.TenantsStore, sender Sender, audits store.AuditStore, logger *utils.Logger) *Service {
	return &Service{cfg: cfg, store: st, users: users, tenants: tenants, sender: sender, audits: audits, logger: logger}
}

// Create issues an invite token, persists it and mails the accept link. A
// mail failure is logged but does not void the invite.
func (s *Service) Create(ctx context.Context, tenantID, email, role string, invitedBy int64) (*store.Invite, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if !rbac.KnownRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrNotFound
	}
	if existing, err := s.users.GetUserByEmail(ctx, tenantID, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: user already exists", ErrValidation)
	}
	token, err := utils.RandString(32)
	if err != nil {
		return nil, err
	}
	invite := &store.Invite{
		TenantID:  tenantID,
		Email:     email,
		Role:      strings.ToUpper(strings.TrimSpace(role)),
		Token:     token,
		InvitedBy: invitedBy,
		ExpiresAt: time.Now().UTC().Add(s.cfg.Invites.TTL),
	}
	if _, err := s.store.CreateInvite(ctx, invite); err != nil {
		return nil, err
	}
	inviteURL := fmt.Sprintf("%s?token=%s", s.cfg.Invites.AcceptURL, token)
	subject := renderTemplate(s.cfg.Invites.MailSubject, email, tenant.Name, inviteURL, invite.ExpiresAt)
	body := renderTemplate(s.cfg.Invites.MailBody, email, tenant.Name, inviteURL, invite.ExpiresAt)
	if err := s.sender.Send(ctx, email, subject, body); err != nil {
		if s.logger != nil {
			s.logger.Errorf("invite mail to %s failed: %v", email, err)
		}
	}
	if s.audits != nil {
		s.audits.Log(ctx, fmt.Sprintf("user:%d", invitedBy), "invite.create", fmt.Sprintf("%s|%s|%s", tenantID, email, invite.Role))
	}
	return invite, nil
}

// Accept consumes a pending invite and creates the user with the invited
// role and the supplied password.
func (s *Service) Accept(ctx context.Context, token, fullName, password string) (*store.User, error) {
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("%w: password required", ErrValidation)
	}
	invite, err := s.store.GetInviteByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	if invite == nil {
		return nil, ErrNotFound
	}
	if invite.AcceptedAt != nil || invite.RevokedAt != nil {
		return nil, ErrConsumed
	}
	if time.Now().UTC().After(invite.ExpiresAt) {
		return nil, ErrExpired
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &store.User{
		TenantID:     invite.TenantID,
		Email:        invite.Email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
		Roles:        []string{invite.Role},
	}
	if _, err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	if err := s.store.MarkInviteAccepted(ctx, invite.ID); err != nil {
		return nil, err
	}
	if s.audits != nil {
		s.audits.Log(ctx, user.Email, "invite.accept", invite.TenantID)
	}
	return user, nil
}

func (s *Service) List(ctx context.Context, tenantID string) ([]store.Invite, error) {
	return s.store.ListInvites(ctx, tenantID)
}

func (s *Service) Revoke(ctx context.Context, tenantID string, id int64) error {
	return s.store.RevokeInvite(ctx, tenantID, id)
}
