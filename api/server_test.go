package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"medshift/config"
	"medshift/core/auth"
	"medshift/core/incidents"
	"medshift/core/invites"
	"medshift/core/rbac"
	"medshift/core/store"
	"medshift/core/timesheets"
	"medshift/core/utils"
)

func setupServerEnv(t *testing.T) (*httptest.Server, *config.AppConfig) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.AppConfig{
		DBDriver:  "sqlite",
		DBPath:    filepath.Join(dir, "api.db"),
		JWTSecret: "api-test-secret",
		TokenTTL:  time.Hour,
		Incidents: config.IncidentsConfig{
			UploadsDir:     filepath.Join(dir, "uploads"),
			UploadMaxBytes: 1 << 20,
			DefaultLimit:   10,
		},
		Invites: config.InvitesConfig{
			TTL:         time.Hour,
			AcceptURL:   "http://localhost/invite",
			MailSubject: "Invite to {tenant}",
			MailBody:    "{invite_url}",
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

	users := store.NewUsersStore(db)
	tenants := store.NewTenantsStore(db)
	invitesStore := store.NewInvitesStore(db)
	shifts := store.NewShiftsStore(db)
	timesheetsStore := store.NewTimesheetsStore(db)
	incidentsStore := store.NewIncidentsStore(db)
	audits := store.NewAuditStore(db)

	policy, err := rbac.NewPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	deps := ServerDeps{
		Users:         users,
		Tenants:       tenants,
		Shifts:        shifts,
		Audits:        audits,
		IncidentsS:    incidentsStore,
		IncidentsSvc:  incidents.NewService(cfg, incidentsStore, audits, logger),
		InvitesSvc:    invites.NewService(cfg, invitesStore, users, tenants, invites.NewLogSender(logger), audits, logger),
		TimesheetsSvc: timesheets.NewService(timesheetsStore, audits, logger),
		Tokens:        auth.NewTokenManager(cfg.JWTSecret, cfg.EffectiveTokenTTL()),
		Policy:        policy,
	}
	srv := httptest.NewServer(NewServer(cfg, deps, logger).Router())
	t.Cleanup(srv.Close)
	return srv, cfg
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func bootstrapAdmin(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/bootstrap", "", map[string]string{
		"tenant_id":   "mercy",
		"tenant_name": "Mercy General",
		"email":       "admin@mercy.org",
		"full_name":   "Admin",
		"password":    "admin-pass-1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("bootstrap: status %d body %s", resp.StatusCode, body)
	}
	return login(t, srv, "admin@mercy.org", "admin-pass-1")
}

func login(t *testing.T, srv *httptest.Server, email, password string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", map[string]string{
		"tenant_id": "mercy",
		"email":     email,
		"password":  password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, resp.StatusCode, body)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Token == "" {
		t.Fatalf("login response: %s", body)
	}
	return out.Token
}

func inviteAndAccept(t *testing.T, srv *httptest.Server, adminToken, email, role, password string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/invites/", adminToken, map[string]string{
		"email": email,
		"role":  role,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("invite: status %d body %s", resp.StatusCode, body)
	}
	var inv struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &inv); err != nil || inv.Token == "" {
		t.Fatalf("invite response: %s", body)
	}
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/invites/accept", "", map[string]string{
		"token":     inv.Token,
		"full_name": "Invited",
		"password":  password,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("accept: status %d body %s", resp.StatusCode, body)
	}
	return login(t, srv, email, password)
}

func TestBootstrapOnlyOnce(t *testing.T) {
	srv, _ := setupServerEnv(t)
	bootstrapAdmin(t, srv)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/auth/bootstrap", "", map[string]string{
		"tenant_id": "again", "tenant_name": "x", "email": "a@b.org", "password": "password-1",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second bootstrap: status %d", resp.StatusCode)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv, _ := setupServerEnv(t)
	bootstrapAdmin(t, srv)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", map[string]string{
		"tenant_id": "mercy", "email": "admin@mercy.org", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestRequiresBearerToken(t *testing.T) {
	srv, _ := setupServerEnv(t)
	bootstrapAdmin(t, srv)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/incidents/", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var env struct {
		Error struct {
			Code    string `json:"code"`
			I18nKey string `json:"i18n_key"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Error.Code != "auth.unauthorized" {
		t.Fatalf("error body: %s", body)
	}
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/incidents/", "not-a-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", resp.StatusCode)
	}
}

func TestStaffCannotManage(t *testing.T) {
	srv, _ := setupServerEnv(t)
	adminToken := bootstrapAdmin(t, srv)
	staffToken := inviteAndAccept(t, srv, adminToken, "staff@mercy.org", "STAFF", "staff-pass-1")

	// staff can report
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/incidents/", staffToken, map[string]any{
		"title": "spilled chart", "incident_type": "OTHER",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("staff create: status %d body %s", resp.StatusCode, body)
	}
	var inc store.Incident
	if err := json.Unmarshal(body, &inc); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// but not advance the workflow
	resp, _ = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/api/incidents/%d/step", srv.URL, inc.ID), staffToken, map[string]string{
		"step": "RISK_ANALYSIS",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("staff advance: status %d", resp.StatusCode)
	}
	// nor manage tenants
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/tenants/", staffToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("staff tenants: status %d", resp.StatusCode)
	}
}

func TestIncidentFlowOverHTTP(t *testing.T) {
	srv, _ := setupServerEnv(t)
	token := bootstrapAdmin(t, srv)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/incidents/", token, map[string]any{
		"title":          "lost badge",
		"description":    "badge with door access missing",
		"incident_type":  "UNAUTHORIZED_ACCESS",
		"phi_data_types": []string{"NAME"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d body %s", resp.StatusCode, body)
	}
	var inc store.Incident
	if err := json.Unmarshal(body, &inc); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if inc.Status != "OPEN" || inc.CurrentStep != "INITIAL_ASSESSMENT" {
		t.Fatalf("defaults: %+v", inc)
	}

	resp, body = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/api/incidents/%d/step", srv.URL, inc.ID), token, map[string]string{
		"step": "RISK_ANALYSIS", "notes": "reviewed door logs",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("step: status %d body %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &inc); err != nil {
		t.Fatalf("decode step: %v", err)
	}
	if inc.CurrentStep != "RISK_ANALYSIS" || len(inc.WorkflowHistory) != 1 {
		t.Fatalf("after step: %+v", inc)
	}

	resp, body = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/api/incidents/%d/status", srv.URL, inc.ID), token, map[string]string{
		"status": "IN_PROGRESS",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: status %d body %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &inc); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if inc.Status != "IN_PROGRESS" {
		t.Fatalf("after status: %+v", inc)
	}

	// unknown status value is a 400
	resp, _ = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/api/incidents/%d/status", srv.URL, inc.ID), token, map[string]string{
		"status": "CLOSED",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad status: %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/incidents/?status=IN_PROGRESS", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search: status %d", resp.StatusCode)
	}
	var result incidents.SearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if result.Total != 1 || result.TotalPages != 1 || len(result.Items) != 1 {
		t.Fatalf("search result: %+v", result)
	}
}

func TestAttachmentOverHTTP(t *testing.T) {
	srv, _ := setupServerEnv(t)
	token := bootstrapAdmin(t, srv)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/incidents/", token, map[string]any{
		"title": "with upload", "incident_type": "OTHER",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}
	var inc store.Incident
	if err := json.Unmarshal(body, &inc); err != nil {
		t.Fatalf("decode: %v", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "evidence.txt")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write([]byte("camera footage index")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/api/incidents/%d/attachment/upload", srv.URL, inc.ID), &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	uploadResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer uploadResp.Body.Close()
	if uploadResp.StatusCode != http.StatusOK {
		t.Fatalf("upload: status %d", uploadResp.StatusCode)
	}
	if err := json.NewDecoder(uploadResp.Body).Decode(&inc); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	if len(inc.Attachments) != 1 || inc.Attachments[0].Name != "evidence.txt" {
		t.Fatalf("attachments: %+v", inc.Attachments)
	}
	attID := inc.Attachments[0].ID

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/incidents/%d/attachment/%s", srv.URL, inc.ID, attID), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download: status %d", resp.StatusCode)
	}
	if string(body) != "camera footage index" {
		t.Fatalf("download body: %q", body)
	}

	resp, body = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/incidents/%d/attachment/%s", srv.URL, inc.ID, attID), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status %d body %s", resp.StatusCode, body)
	}
	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &msg); err != nil || msg.Message == "" {
		t.Fatalf("delete body: %s", body)
	}

	resp, _ = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/incidents/%d/attachment/%s", srv.URL, inc.ID, attID), token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("download after delete: status %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := setupServerEnv(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}
	var out map[string]string
	if err := json.Unmarshal(body, &out); err != nil || out["status"] != "ok" {
		t.Fatalf("body: %s", body)
	}
}
