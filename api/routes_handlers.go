package api

import (
	"net/http"

	"medshift/api/handlers"
	"medshift/api/routegroups"
	"medshift/core/rbac"

	"github.com/go-chi/chi/v5"
)

type routeHandlers struct {
	auth       *handlers.AuthHandler
	incidents  *handlers.IncidentsHandler
	tenants    *handlers.TenantsHandler
	users      *handlers.UsersHandler
	invites    *handlers.InvitesHandler
	shifts     *handlers.ShiftsHandler
	timesheets *handlers.TimesheetsHandler
	logs       *handlers.LogsHandler
}

func (s *Server) newRouteHandlers() routeHandlers {
	return routeHandlers{
		auth:       handlers.NewAuthHandler(s.cfg, s.users, s.tenants, s.tokens, s.audits, s.logger),
		incidents:  handlers.NewIncidentsHandler(s.cfg, s.incidentsSvc, s.audits, s.logger),
		tenants:    handlers.NewTenantsHandler(s.tenants, s.audits, s.logger),
		users:      handlers.NewUsersHandler(s.users, s.audits, s.logger),
		invites:    handlers.NewInvitesHandler(s.invitesSvc, s.logger),
		shifts:     handlers.NewShiftsHandler(s.shifts, s.audits, s.logger),
		timesheets: handlers.NewTimesheetsHandler(s.timesheetsSvc, s.logger),
		logs:       handlers.NewLogsHandler(s.audits),
	}
}

func (s *Server) guards() routegroups.Guards {
	return routegroups.Guards{
		WithAuth: s.withAuth,
		RequirePermission: func(p string) func(http.HandlerFunc) http.HandlerFunc {
			return s.requirePermission(rbac.Permission(p))
		},
	}
}

func (s *Server) registerAuthRoutes(apiRouter chi.Router, h routeHandlers) {
	routegroups.RegisterAuth(apiRouter, s.guards(), h.auth)
}

func (s *Server) registerIncidentRoutes(apiRouter chi.Router, h routeHandlers) {
	routegroups.RegisterIncidents(apiRouter, s.guards(), h.incidents)
}

func (s *Server) registerWorkforceRoutes(apiRouter chi.Router, h routeHandlers) {
	routegroups.RegisterWorkforce(apiRouter, s.guards(), h.shifts, h.timesheets)
}

func (s *Server) registerAdminRoutes(apiRouter chi.Router, h routeHandlers) {
	routegroups.RegisterAdmin(apiRouter, s.guards(), h.tenants, h.users, h.invites, h.logs)
}
