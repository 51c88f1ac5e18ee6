package api

import (
	"context"
	"net/http"

	"medshift/config"
	"medshift/core/auth"
	"medshift/core/incidents"
	"medshift/core/invites"
	"medshift/core/rbac"
	"medshift/core/store"
	"medshift/core/timesheets"
	"medshift/core/utils"

	"github.com/go-chi/chi/v5"
)

// BackgroundWorker is anything the server starts alongside the HTTP
// listener and stops on shutdown.
type BackgroundWorker interface {
	Start(ctx context.Context) error
	Stop()
}

type ServerDeps struct {
	Users      store.UsersStore
	Tenants    store.TenantsStore
	Shifts     store.ShiftsStore
	Audits     store.AuditStore
	IncidentsS store.IncidentsStore

	IncidentsSvc  *incidents.Service
	InvitesSvc    *invites.Service
	TimesheetsSvc *timesheets.Service

	Tokens *auth.TokenManager
	Policy *rbac.Policy
}

type Server struct {
	cfg    *config.AppConfig
	logger *utils.Logger

	users          store.UsersStore
	tenants        store.TenantsStore
	shifts         store.ShiftsStore
	audits         store.AuditStore
	incidentsStore store.IncidentsStore

	incidentsSvc  *incidents.Service
	invitesSvc    *invites.Service
	timesheetsSvc *timesheets.Service

	tokens *auth.TokenManager
	policy *rbac.Policy
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	return &Server{
		cfg:            cfg,
		logger:         logger,
		users:          deps.Users,
		tenants:        deps.Tenants,
		shifts:         deps.Shifts,
		audits:         deps.Audits,
		incidentsStore: deps.IncidentsS,
		incidentsSvc:   deps.IncidentsSvc,
		invitesSvc:     deps.InvitesSvc,
		timesheetsSvc:  deps.TimesheetsSvc,
		tokens:         deps.Tokens,
		policy:         deps.Policy,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.loggingMiddleware)

	h := s.newRouteHandlers()
	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Use(s.jsonMiddleware)
		s.registerAuthRoutes(apiRouter, h)
		s.registerIncidentRoutes(apiRouter, h)
		s.registerWorkforceRoutes(apiRouter, h)
		s.registerAdminRoutes(apiRouter, h)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}
