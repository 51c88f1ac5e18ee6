package routegroups

import (
	"medshift/api/handlers"

	"github.com/go-chi/chi/v5"
)

func RegisterWorkforce(apiRouter chi.Router, g Guards, shifts *handlers.ShiftsHandler, timesheets *handlers.TimesheetsHandler) {
	apiRouter.Route("/shifts", func(shiftsRouter chi.Router) {
		shiftsRouter.MethodFunc("GET", "/", g.AuthPerm("shifts.view", shifts.List))
		shiftsRouter.MethodFunc("POST", "/", g.AuthPerm("shifts.manage", shifts.Create))
		shiftsRouter.MethodFunc("GET", "/{id:[0-9]+}", g.AuthPerm("shifts.view", shifts.Get))
		shiftsRouter.MethodFunc("PUT", "/{id:[0-9]+}", g.AuthPerm("shifts.manage", shifts.Update))
		shiftsRouter.MethodFunc("DELETE", "/{id:[0-9]+}", g.AuthPerm("shifts.manage", shifts.Delete))
	})

	apiRouter.Route("/timesheets", func(timesheetsRouter chi.Router) {
		timesheetsRouter.MethodFunc("GET", "/", g.AuthPerm("timesheets.view", timesheets.List))
		timesheetsRouter.MethodFunc("GET", "/{id:[0-9]+}", g.AuthPerm("timesheets.view", timesheets.Get))
		timesheetsRouter.MethodFunc("POST", "/clock-in", g.AuthPerm("timesheets.clock", timesheets.ClockIn))
		timesheetsRouter.MethodFunc("POST", "/clock-out", g.AuthPerm("timesheets.clock", timesheets.ClockOut))
		timesheetsRouter.MethodFunc("POST", "/break/start", g.AuthPerm("timesheets.clock", timesheets.StartBreak))
		timesheetsRouter.MethodFunc("POST", "/break/end", g.AuthPerm("timesheets.clock", timesheets.EndBreak))
	})
}
