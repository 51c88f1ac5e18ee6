package invites

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"medshift/config"
	"medshift/core/auth"
	"medshift/core/store"
	"medshift/core/utils"
)

type recordingSender struct {
	to      []string
	bodies  []string
	failAll bool
}

func (r *recordingSender) Send(_ context.Context, to, _ string, body string) error {
	if r.failAll {
		return errors.New("smtp unreachable")
	}
	r.to = append(r.to, to)
	r.bodies = append(r.bodies, body)
	return nil
}

func setupInvitesEnv(t *testing.T) (*Service, *recordingSender, store.UsersStore, *config.AppConfig) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(dir, "invites.db"),
		Invites: config.InvitesConfig{
			TTL:         time.Hour,
			AcceptURL:   "http://localhost:8080/invite",
			MailSubject: "Invite to {tenant}",
			MailBody:    "Hello {name}, join {tenant} at {invite_url} before {expires}.",
		},
	}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if err := store.NewTenantsStore(db).CreateTenant(context.Background(), &store.Tenant{ID: "mercy", Name: "Mercy General"}); err != nil {
		t.Fatalf("tenant: %v", err)
	}
	users := store.NewUsersStore(db)
	sender := &recordingSender{}
	svc := NewService(cfg, store.NewInvitesStore(db), users, store.NewTenantsStore(db), sender, store.NewAuditStore(db), logger)
	return svc, sender, users, cfg
}

func TestCreateSendsMail(t *testing.T) {
	svc, sender, _, _ := setupInvitesEnv(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, "mercy", "Nurse@Mercy.org", "STAFF", 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.Email != "nurse@mercy.org" {
		t.Fatalf("email not normalized: %q", inv.Email)
	}
	if inv.Role != "STAFF" || inv.Token == "" {
		t.Fatalf("invite: %+v", inv)
	}
	if len(sender.to) != 1 || sender.to[0] != "nurse@mercy.org" {
		t.Fatalf("mail recipients: %v", sender.to)
	}
	if !strings.Contains(sender.bodies[0], "Mercy General") || !strings.Contains(sender.bodies[0], inv.Token) {
		t.Fatalf("mail body: %q", sender.bodies[0])
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, users, _ := setupInvitesEnv(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "mercy", "not-an-email", "STAFF", 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad email: %v", err)
	}
	if _, err := svc.Create(ctx, "mercy", "a@b.org", "SUPERUSER", 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad role: %v", err)
	}
	if _, err := svc.Create(ctx, "ghost", "a@b.org", "STAFF", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown tenant: %v", err)
	}
	if _, err := users.CreateUser(ctx, &store.User{TenantID: "mercy", Email: "taken@mercy.org", Roles: []string{"STAFF"}}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := svc.Create(ctx, "mercy", "taken@mercy.org", "STAFF", 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("existing user: %v", err)
	}
}

func TestMailFailureKeepsInvite(t *testing.T) {
	svc, sender, _, _ := setupInvitesEnv(t)
	sender.failAll = true

	inv, err := svc.Create(context.Background(), "mercy", "nurse@mercy.org", "STAFF", 1)
	if err != nil {
		t.Fatalf("create despite mail failure: %v", err)
	}
	if inv.Token == "" {
		t.Fatalf("token missing")
	}
	list, err := svc.List(context.Background(), "mercy")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("invite not persisted")
	}
}

func TestAcceptCreatesUser(t *testing.T) {
	svc, _, users, _ := setupInvitesEnv(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, "mercy", "nurse@mercy.org", "SCHEDULER", 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	user, err := svc.Accept(ctx, inv.Token, "Pat Nurse", "s3cret-pass")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if user.TenantID != "mercy" || user.Email != "nurse@mercy.org" || !user.HasRole("SCHEDULER") {
		t.Fatalf("user: %+v", user)
	}
	stored, err := users.GetUserByEmail(ctx, "mercy", "nurse@mercy.org")
	if err != nil || stored == nil {
		t.Fatalf("user not persisted: %v", err)
	}
	ok, err := auth.VerifyPassword("s3cret-pass", stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("password verify: ok=%v err=%v", ok, err)
	}

	// a consumed token cannot be used again
	if _, err := svc.Accept(ctx, inv.Token, "Again", "other-pass"); !errors.Is(err, ErrConsumed) {
		t.Fatalf("second accept: %v", err)
	}
}

func TestAcceptExpired(t *testing.T) {
	svc, _, _, cfg := setupInvitesEnv(t)
	ctx := context.Background()

	cfg.Invites.TTL = -time.Minute
	inv, err := svc.Create(ctx, "mercy", "late@mercy.org", "STAFF", 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Accept(ctx, inv.Token, "Late", "pass-word"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestAcceptRevoked(t *testing.T) {
	svc, _, _, _ := setupInvitesEnv(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, "mercy", "gone@mercy.org", "STAFF", 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Revoke(ctx, "mercy", inv.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.Accept(ctx, inv.Token, "Gone", "pass-word"); !errors.Is(err, ErrConsumed) {
		t.Fatalf("expected ErrConsumed, got %v", err)
	}
	if _, err := svc.Accept(ctx, "no-such-token", "x", "pass-word"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown token: %v", err)
	}
}
