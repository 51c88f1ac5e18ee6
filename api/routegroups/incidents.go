package routegroups

import (
	"medshift/api/handlers"

	"github.com/go-chi/chi/v5"
)

func RegisterIncidents(apiRouter chi.Router, g Guards, incidents *handlers.IncidentsHandler) {
	apiRouter.Route("/incidents", func(incidentsRouter chi.Router) {
		incidentsRouter.MethodFunc("GET", "/", g.AuthPerm("incidents.view", incidents.Search))
		incidentsRouter.MethodFunc("POST", "/", g.AuthPerm("incidents.report", incidents.Create))
		incidentsRouter.MethodFunc("GET", "/{id:[0-9]+}", g.AuthPerm("incidents.view", incidents.Get))
		incidentsRouter.MethodFunc("PATCH", "/{id:[0-9]+}/step", g.AuthPerm("incidents.manage", incidents.AdvanceStep))
		incidentsRouter.MethodFunc("PATCH", "/{id:[0-9]+}/status", g.AuthPerm("incidents.manage", incidents.SetStatus))
		incidentsRouter.MethodFunc("PATCH", "/{id:[0-9]+}/attachment/upload", g.AuthPerm("incidents.report", incidents.UploadAttachment))
		incidentsRouter.MethodFunc("GET", "/{id:[0-9]+}/attachment/{att_id}", g.AuthPerm("incidents.view", incidents.DownloadAttachment))
		incidentsRouter.MethodFunc("DELETE", "/{id:[0-9]+}/attachment/{att_id}", g.AuthPerm("incidents.manage", incidents.DeleteAttachment))
	})
}
