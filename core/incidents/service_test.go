package incidents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"medshift/config"
	"medshift/core/store"
	"medshift/core/utils"
)

func setupIncidentsEnv(t *testing.T) (*Service, store.IncidentsStore, *sql.DB, *config.AppConfig) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(dir, "incidents.db"),
		Incidents: config.IncidentsConfig{
			UploadsDir:     filepath.Join(dir, "uploads"),
			UploadMaxBytes: 1 << 20,
			DefaultLimit:   10,
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
	tenants := store.NewTenantsStore(db)
	for _, id := range []string{"mercy", "stlukes"} {
		if err := tenants.CreateTenant(context.Background(), &store.Tenant{ID: id, Name: id}); err != nil {
			t.Fatalf("tenant %s: %v", id, err)
		}
	}
	incidentsStore := store.NewIncidentsStore(db)
	audits := store.NewAuditStore(db)
	svc := NewService(cfg, incidentsStore, audits, logger)
	return svc, incidentsStore, db, cfg
}

func mustCreate(t *testing.T, svc *Service, tenant, title, incidentType string) *store.Incident {
	t.Helper()
	inc, err := svc.Create(context.Background(), CreateRequest{
		TenantID:     tenant,
		ReportedBy:   1,
		Title:        title,
		IncidentType: incidentType,
	})
	if err != nil {
		t.Fatalf("create incident: %v", err)
	}
	return inc
}

func TestCreateDefaults(t *testing.T) {
	svc, _, _, _ := setupIncidentsEnv(t)
	inc := mustCreate(t, svc, "mercy", "lost laptop", "DATA_LOSS")
	if inc.Status != "OPEN" {
		t.Fatalf("expected status OPEN, got %q", inc.Status)
	}
	if inc.CurrentStep != "INITIAL_ASSESSMENT" {
		t.Fatalf("expected step INITIAL_ASSESSMENT, got %q", inc.CurrentStep)
	}
	if inc.PHIDataTypes == nil || inc.WorkflowHistory == nil || inc.Attachments == nil {
		t.Fatalf("expected empty slices, got nils: %+v", inc)
	}
	if inc.CreatedAt.IsZero() || inc.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set")
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _ := setupIncidentsEnv(t)
	if _, err := svc.Create(context.Background(), CreateRequest{TenantID: "mercy", Title: " ", IncidentType: "OTHER"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank title: expected validation error, got %v", err)
	}
	if _, err := svc.Create(context.Background(), CreateRequest{TenantID: "mercy", Title: "x", IncidentType: "BOGUS"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad type: expected validation error, got %v", err)
	}
}

func TestAdvanceStepAppendsHistory(t *testing.T) {
	svc, _, _, _ := setupIncidentsEnv(t)
	ctx := context.Background()
	inc := mustCreate(t, svc, "mercy", "exposed chart", "IMPROPER_DISCLOSURE")

	steps := []string{"INITIAL_ASSESSMENT", "RISK_ANALYSIS", "MITIGATION"}
	var updated *store.Incident
	var err error
	for _, step := range steps {
		updated, err = svc.AdvanceStep(ctx, "mercy", inc.ID, step, 7, "done: "+step)
		if err != nil {
			t.Fatalf("advance %s: %v", step, err)
		}
	}
	if len(updated.WorkflowHistory) != len(steps) {
		t.Fatalf("expected %d history entries, got %d", len(steps), len(updated.WorkflowHistory))
	}
	for i, step := range steps {
		if updated.WorkflowHistory[i].Step != step {
			t.Fatalf("history[%d] = %q, want %q", i, updated.WorkflowHistory[i].Step, step)
		}
	}
	if updated.CurrentStep != "MITIGATION" {
		t.Fatalf("current step = %q, want MITIGATION", updated.CurrentStep)
	}
	if updated.WorkflowHistory[1].CompletedBy != 7 {
		t.Fatalf("completed_by = %d, want 7", updated.WorkflowHistory[1].CompletedBy)
	}
	if updated.WorkflowHistory[2].Notes != "done: MITIGATION" {
		t.Fatalf("notes = %q", updated.WorkflowHistory[2].Notes)
	}
}

func TestAdvanceStepAcceptsAnyOrder(t *testing.T) {
	svc, _, _, _ := setupIncidentsEnv(t)
	ctx := context.Background()
	inc := mustCreate(t, svc, "mercy", "shuffled", "OTHER")

	// steps may repeat and arrive out of order; every call appends
	for _, step := range []string{"RESOLUTION", "RISK_ANALYSIS", "RESOLUTION"} {
		if _, err := svc.AdvanceStep(ctx, "mercy", inc.ID, step, 1, ""); err != nil {
			t.Fatalf("advance %s: %v", step, err)
		}
	}
	got, err := svc.Get(ctx, "mercy", inc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.WorkflowHistory) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got.WorkflowHistory))
	}
	if got.CurrentStep != "RESOLUTION" {
		t.Fatalf("current step = %q", got.CurrentStep)
	}
	if _, err := svc.AdvanceStep(ctx, "mercy", inc.ID, "NOT_A_STEP", 1, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown step: expected validation error, got %v", err)
	}
}

func TestSetStatus(t *testing.T) {
	svc, _, _, _ := setupIncidentsEnv(t)
	ctx := context.Background()
	inc := mustCreate(t, svc, "mercy", "status check", "OTHER")

	for _, status := range []string{"IN_REVIEW", "RESOLVED", "OPEN"} {
		got, err := svc.SetStatus(ctx, "mercy", inc.ID, status)
		if err != nil {
			t.Fatalf("set status %s: %v", status, err)
		}
		if got.Status != status {
			t.Fatalf("status = %q, want %q", got.Status, status)
		}
	}
	if _, err := svc.SetStatus(ctx, "mercy", inc.ID, "CLOSED"); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown status: expected validation error, got %v", err)
	}
}

func TestSearchPagination(t *testing.T) {
	svc, _, _, _ := setupIncidentsEnv(t)
	ctx := context.Background()
	for i := 0; i < 23; i++ {
		mustCreate(t, svc, "mercy", fmt.Sprintf("incident %02d", i), "OTHER")
	}

	res, err := svc.Search(ctx, SearchRequest{TenantID: "mercy", Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Total != 23 || res.TotalPages != 3 || len(res.Items) != 10 {
		t.Fatalf("page 1: total=%d pages=%d items=%d", res.Total, res.TotalPages, len(res.Items))
	}
	// newest first, id breaks created_at ties
	if res.Items[0].Title != "incident 22" || res.Items[9].Title != "incident 13" {
		t.Fatalf("page 1 order: first=%q last=%q", res.Items[0].Title, res.Items[9].Title)
	}
	for i := 1; i < len(res.Items); i++ {
		if res.Items[i].ID >= res.Items[i-1].ID {
			t.Fatalf("ids not descending at %d: %d >= %d", i, res.Items[i].ID, res.Items[i-1].ID)
		}
	}
	res, err = svc.Search(ctx, SearchRequest{TenantID: "mercy", Page: 3, Limit: 10})
	if err != nil {
		t.Fatalf("search page 3: %v", err)
	}
	if len(res.Items) != 3 {
		t.Fatalf("page 3: expected 3 items, got %d", len(res.Items))
	}
	res, err = svc.Search(ctx, SearchRequest{TenantID: "mercy", Page: 4, Limit: 10})
	if err != nil {
		t.Fatalf("search page 4: %v", err)
	}
	if len(res.Items) != 0 || res.Total != 23 {
		t.Fatalf("page 4 past the end: items=%d total=%d", len(res.Items), res.Total)
	}
	// page and limit fall back when absent
	res, err = svc.Search(ctx, SearchRequest{TenantID: "mercy"})
	if err != nil {
		t.Fatalf("search defaults: %v", err)
	}
	if res.Page != 1 || res.Limit != 10 {
		t.Fatalf("defaults: page=%d limit=%d", res.Page, res.Limit)
	}
}

func TestSearchFilters(t *testing.T) {
	svc, _, _, _ := setupIncidentsEnv(t)
	ctx := context.Background()
	a := mustCreate(t, svc, "mercy", "ransomware on imaging server", "DATA_LOSS")
	mustCreate(t, svc, "mercy", "misdirected fax", "IMPROPER_DISCLOSURE")
	if _, err := svc.SetStatus(ctx, "mercy", a.ID, "IN_PROGRESS"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if _, err := svc.AdvanceStep(ctx, "mercy", a.ID, "RISK_ANALYSIS", 1, ""); err != nil {
		t.Fatalf("advance: %v", err)
	}

	res, err := svc.Search(ctx, SearchRequest{TenantID: "mercy", Status: "IN_PROGRESS"})
	if err != nil {
		t.Fatalf("search status: %v", err)
	}
	if res.Total != 1 || res.Items[0].ID != a.ID {
		t.Fatalf("status filter: total=%d", res.Total)
	}
	res, err = svc.Search(ctx, SearchRequest{TenantID: "mercy", Step: "RISK_ANALYSIS"})
	if err != nil {
		t.Fatalf("search step: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("step filter: total=%d", res.Total)
	}
	res, err = svc.Search(ctx, SearchRequest{TenantID: "mercy", Search: "fax"})
	if err != nil {
		t.Fatalf("search text: %v", err)
	}
	if res.Total != 1 || res.Items[0].Title != "misdirected fax" {
		t.Fatalf("text filter: total=%d", res.Total)
	}
	res, err = svc.Search(ctx, SearchRequest{TenantID: "mercy", IncidentType: "DATA_LOSS"})
	if err != nil {
		t.Fatalf("search type: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("type filter: total=%d", res.Total)
	}
}

func TestTenantIsolation(t *testing.T) {
	svc, _, _, _ := setupIncidentsEnv(t)
	ctx := context.Background()
	mine := mustCreate(t, svc, "mercy", "mercy only", "OTHER")
	mustCreate(t, svc, "stlukes", "stlukes only", "OTHER")

	res, err := svc.Search(ctx, SearchRequest{TenantID: "mercy"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Total != 1 || res.Items[0].Title != "mercy only" {
		t.Fatalf("tenant leak: total=%d", res.Total)
	}
	if _, err := svc.Get(ctx, "stlukes", mine.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant get: expected not found, got %v", err)
	}
	if _, err := svc.AdvanceStep(ctx, "stlukes", mine.ID, "MITIGATION", 1, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant advance: expected not found, got %v", err)
	}
	if _, err := svc.SetStatus(ctx, "stlukes", mine.ID, "RESOLVED"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant status: expected not found, got %v", err)
	}
}

func TestAttachmentLifecycle(t *testing.T) {
	svc, _, _, _ := setupIncidentsEnv(t)
	ctx := context.Background()
	inc := mustCreate(t, svc, "mercy", "with files", "OTHER")

	payload := []byte("breach report body")
	updated, err := svc.AddAttachment(ctx, "mercy", inc.ID, "report.pdf", "application/pdf", payload, 3)
	if err != nil {
		t.Fatalf("add attachment: %v", err)
	}
	if len(updated.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(updated.Attachments))
	}
	att := updated.Attachments[0]
	if att.Name != "report.pdf" || att.SizeBytes != int64(len(payload)) || att.UploadedBy != 3 {
		t.Fatalf("attachment fields wrong: %+v", att)
	}

	got, data, err := svc.OpenAttachment(ctx, "mercy", inc.ID, att.ID)
	if err != nil {
		t.Fatalf("open attachment: %v", err)
	}
	if got.ContentType != "application/pdf" || string(data) != string(payload) {
		t.Fatalf("round trip mismatch")
	}

	if err := svc.DeleteAttachment(ctx, "mercy", inc.ID, att.ID); err != nil {
		t.Fatalf("delete attachment: %v", err)
	}
	if _, err := os.Stat(svc.AttachmentPath(inc.ID, att.ID)); !os.IsNotExist(err) {
		t.Fatalf("file still on disk: %v", err)
	}
	after, err := svc.Get(ctx, "mercy", inc.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if len(after.Attachments) != 0 {
		t.Fatalf("attachment still listed")
	}
	if err := svc.DeleteAttachment(ctx, "mercy", inc.ID, att.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected not found, got %v", err)
	}
}

func TestDeleteAttachmentToleratesMissingFile(t *testing.T) {
	svc, _, _, _ := setupIncidentsEnv(t)
	ctx := context.Background()
	inc := mustCreate(t, svc, "mercy", "file vanished", "OTHER")

	updated, err := svc.AddAttachment(ctx, "mercy", inc.ID, "note.txt", "text/plain", []byte("x"), 1)
	if err != nil {
		t.Fatalf("add attachment: %v", err)
	}
	att := updated.Attachments[0]
	if err := os.Remove(svc.AttachmentPath(inc.ID, att.ID)); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	// the record goes away even though the file is already gone
	if err := svc.DeleteAttachment(ctx, "mercy", inc.ID, att.ID); err != nil {
		t.Fatalf("delete with missing file: %v", err)
	}
	after, err := svc.Get(ctx, "mercy", inc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(after.Attachments) != 0 {
		t.Fatalf("attachment still listed after delete")
	}
}

func TestIncidentLifecycleEndToEnd(t *testing.T) {
	svc, _, _, _ := setupIncidentsEnv(t)
	ctx := context.Background()

	inc := mustCreate(t, svc, "mercy", "stolen backup drive", "DATA_LOSS")
	if _, err := svc.AdvanceStep(ctx, "mercy", inc.ID, "RISK_ANALYSIS", 5, "assessed exposure"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := svc.SetStatus(ctx, "mercy", inc.ID, "IN_PROGRESS"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if _, err := svc.AddAttachment(ctx, "mercy", inc.ID, "inventory.csv", "text/csv", []byte("drive,serial"), 5); err != nil {
		t.Fatalf("attach: %v", err)
	}

	got, err := svc.Get(ctx, "mercy", inc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "IN_PROGRESS" || got.CurrentStep != "RISK_ANALYSIS" {
		t.Fatalf("state: status=%q step=%q", got.Status, got.CurrentStep)
	}
	if len(got.WorkflowHistory) != 1 || len(got.Attachments) != 1 {
		t.Fatalf("history=%d attachments=%d", len(got.WorkflowHistory), len(got.Attachments))
	}
}
