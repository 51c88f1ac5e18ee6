package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"medshift/config"
	"medshift/core/utils"
)

func setupStoreEnv(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "store.db"),
	}
	logger := utils.NewLogger()
	db, err := NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return db
}

func TestTenantIDNormalizedAndUnique(t *testing.T) {
	db := setupStoreEnv(t)
	tenants := NewTenantsStore(db)
	ctx := context.Background()

	if err := tenants.CreateTenant(ctx, &Tenant{ID: "  Mercy ", Name: "Mercy"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := tenants.GetTenant(ctx, "MERCY")
	if err != nil || got == nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "mercy" || !got.Active {
		t.Fatalf("tenant: %+v", got)
	}
	if err := tenants.CreateTenant(ctx, &Tenant{ID: "mercy", Name: "Again"}); err != ErrConflict {
		t.Fatalf("duplicate: expected ErrConflict, got %v", err)
	}
}

func TestUserEmailUniquePerTenant(t *testing.T) {
	db := setupStoreEnv(t)
	ctx := context.Background()
	tenants := NewTenantsStore(db)
	for _, id := range []string{"a", "b"} {
		if err := tenants.CreateTenant(ctx, &Tenant{ID: id, Name: id}); err != nil {
			t.Fatalf("tenant: %v", err)
		}
	}
	users := NewUsersStore(db)
	if _, err := users.CreateUser(ctx, &User{TenantID: "a", Email: "x@y.org", Roles: []string{"staff"}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := users.CreateUser(ctx, &User{TenantID: "a", Email: "X@Y.org", Roles: []string{"STAFF"}}); err != ErrConflict {
		t.Fatalf("duplicate in tenant: expected ErrConflict, got %v", err)
	}
	// the same address in another tenant is fine
	if _, err := users.CreateUser(ctx, &User{TenantID: "b", Email: "x@y.org", Roles: []string{"STAFF"}}); err != nil {
		t.Fatalf("other tenant: %v", err)
	}
	u, err := users.GetUserByEmail(ctx, "a", "x@y.org")
	if err != nil || u == nil {
		t.Fatalf("get by email: %v", err)
	}
	if !u.HasRole("STAFF") {
		t.Fatalf("roles not normalized: %v", u.Roles)
	}
}

func TestIncidentListOrderAndOffset(t *testing.T) {
	db := setupStoreEnv(t)
	ctx := context.Background()
	if err := NewTenantsStore(db).CreateTenant(ctx, &Tenant{ID: "t", Name: "t"}); err != nil {
		t.Fatalf("tenant: %v", err)
	}
	incidents := NewIncidentsStore(db)
	var ids []int64
	for i := 0; i < 5; i++ {
		inc := &Incident{TenantID: "t", ReportedBy: 1, Title: "inc", IncidentType: "OTHER"}
		id, err := incidents.CreateIncident(ctx, inc)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, id)
	}
	items, err := incidents.ListIncidents(ctx, IncidentFilter{TenantID: "t", Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// newest first, id breaks created_at ties
	if len(items) != 2 || items[0].ID != ids[4] || items[1].ID != ids[3] {
		t.Fatalf("order: %v", []int64{items[0].ID, items[1].ID})
	}
	items, err = incidents.ListIncidents(ctx, IncidentFilter{TenantID: "t", Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if len(items) != 1 || items[0].ID != ids[0] {
		t.Fatalf("offset page: %+v", items)
	}
	total, err := incidents.CountIncidents(ctx, IncidentFilter{TenantID: "t"})
	if err != nil || total != 5 {
		t.Fatalf("count = %d err=%v", total, err)
	}
}

func TestCreateReturnsRowIDs(t *testing.T) {
	db := setupStoreEnv(t)
	ctx := context.Background()
	if err := NewTenantsStore(db).CreateTenant(ctx, &Tenant{ID: "t", Name: "t"}); err != nil {
		t.Fatalf("tenant: %v", err)
	}
	users := NewUsersStore(db)
	userID, err := users.CreateUser(ctx, &User{TenantID: "t", Email: "a@t.org", Roles: []string{"staff"}})
	if err != nil || userID <= 0 {
		t.Fatalf("user id = %d err=%v", userID, err)
	}
	invite := &Invite{TenantID: "t", Email: "b@t.org", Role: "STAFF", Token: "tok", InvitedBy: userID, ExpiresAt: time.Now().Add(time.Hour)}
	inviteID, err := NewInvitesStore(db).CreateInvite(ctx, invite)
	if err != nil || inviteID <= 0 || invite.ID != inviteID {
		t.Fatalf("invite id = %d (%d) err=%v", inviteID, invite.ID, err)
	}
	shift := &Shift{TenantID: "t", StaffID: userID, Role: "nurse", Location: "ward", StartsAt: time.Now(), EndsAt: time.Now().Add(8 * time.Hour), CreatedBy: userID}
	shiftID, err := NewShiftsStore(db).CreateShift(ctx, shift)
	if err != nil || shiftID <= 0 || shift.ID != shiftID {
		t.Fatalf("shift id = %d (%d) err=%v", shiftID, shift.ID, err)
	}
	timesheets := NewTimesheetsStore(db)
	ts := &Timesheet{TenantID: "t", StaffID: userID}
	tsID, err := timesheets.CreateTimesheet(ctx, ts)
	if err != nil || tsID <= 0 || ts.ID != tsID {
		t.Fatalf("timesheet id = %d (%d) err=%v", tsID, ts.ID, err)
	}
	breakID, err := timesheets.StartBreak(ctx, tsID, time.Now())
	if err != nil || breakID <= 0 {
		t.Fatalf("break id = %d err=%v", breakID, err)
	}
	inc := &Incident{TenantID: "t", ReportedBy: userID, Title: "inc", IncidentType: "OTHER"}
	incID, err := NewIncidentsStore(db).CreateIncident(ctx, inc)
	if err != nil || incID <= 0 || inc.ID != incID {
		t.Fatalf("incident id = %d (%d) err=%v", incID, inc.ID, err)
	}
}

func TestPurgeExpiredInvitesKeepsAccepted(t *testing.T) {
	db := setupStoreEnv(t)
	ctx := context.Background()
	if err := NewTenantsStore(db).CreateTenant(ctx, &Tenant{ID: "t", Name: "t"}); err != nil {
		t.Fatalf("tenant: %v", err)
	}
	invites := NewInvitesStore(db)
	now := time.Now().UTC()

	old := &Invite{TenantID: "t", Email: "old@t.org", Role: "STAFF", Token: "old", InvitedBy: 1, ExpiresAt: now.Add(-time.Hour)}
	if _, err := invites.CreateInvite(ctx, old); err != nil {
		t.Fatalf("old: %v", err)
	}
	used := &Invite{TenantID: "t", Email: "used@t.org", Role: "STAFF", Token: "used", InvitedBy: 1, ExpiresAt: now.Add(-time.Hour)}
	if _, err := invites.CreateInvite(ctx, used); err != nil {
		t.Fatalf("used: %v", err)
	}
	if err := invites.MarkInviteAccepted(ctx, used.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	purged, err := invites.PurgeExpiredInvites(ctx, now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}
	if inv, _ := invites.GetInviteByToken(ctx, "used"); inv == nil {
		t.Fatalf("accepted invite should survive the purge")
	}
}
