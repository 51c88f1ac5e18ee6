package routegroups

import (
	"medshift/api/handlers"

	"github.com/go-chi/chi/v5"
)

func RegisterAuth(apiRouter chi.Router, g Guards, auth *handlers.AuthHandler) {
	apiRouter.Route("/auth", func(authRouter chi.Router) {
		authRouter.MethodFunc("POST", "/login", auth.Login)
		authRouter.MethodFunc("POST", "/bootstrap", auth.Bootstrap)
		authRouter.MethodFunc("GET", "/me", g.WithAuth(auth.Me))
	})
}

func RegisterAdmin(apiRouter chi.Router, g Guards, tenants *handlers.TenantsHandler, users *handlers.UsersHandler, invites *handlers.InvitesHandler, logs *handlers.LogsHandler) {
	apiRouter.Route("/tenants", func(tenantsRouter chi.Router) {
		tenantsRouter.MethodFunc("GET", "/", g.AuthPerm("tenants.manage", tenants.List))
		tenantsRouter.MethodFunc("POST", "/", g.AuthPerm("tenants.manage", tenants.Create))
		tenantsRouter.MethodFunc("GET", "/{id}", g.AuthPerm("tenants.manage", tenants.Get))
		tenantsRouter.MethodFunc("PUT", "/{id}", g.AuthPerm("tenants.manage", tenants.Update))
		tenantsRouter.MethodFunc("POST", "/{id}/deactivate", g.AuthPerm("tenants.manage", tenants.Deactivate))
	})

	apiRouter.Route("/users", func(usersRouter chi.Router) {
		usersRouter.MethodFunc("GET", "/", g.AuthPerm("users.manage", users.List))
		usersRouter.MethodFunc("GET", "/{id:[0-9]+}", g.AuthPerm("users.manage", users.Get))
		usersRouter.MethodFunc("PUT", "/{id:[0-9]+}", g.AuthPerm("users.manage", users.Update))
		usersRouter.MethodFunc("POST", "/{id:[0-9]+}/deactivate", g.AuthPerm("users.manage", users.Deactivate))
	})

	apiRouter.Route("/invites", func(invitesRouter chi.Router) {
		invitesRouter.MethodFunc("GET", "/", g.AuthPerm("invites.manage", invites.List))
		invitesRouter.MethodFunc("POST", "/", g.AuthPerm("invites.manage", invites.Create))
		invitesRouter.MethodFunc("POST", "/accept", invites.Accept)
		invitesRouter.MethodFunc("DELETE", "/{id:[0-9]+}", g.AuthPerm("invites.manage", invites.Revoke))
	})

	apiRouter.MethodFunc("GET", "/logs", g.AuthPerm("audit.view", logs.List))
}
