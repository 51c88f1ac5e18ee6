package appbootstrap

import (
	"database/sql"

	"medshift/api"
	"medshift/config"
	"medshift/core/auth"
	"medshift/core/incidents"
	"medshift/core/invites"
	"medshift/core/rbac"
	"medshift/core/retention"
	"medshift/core/store"
	"medshift/core/timesheets"
	"medshift/core/utils"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	workers    []api.BackgroundWorker
}

func composeRuntime(cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (*runtimeComposition, error) {
	users := store.NewUsersStore(db)
	tenants := store.NewTenantsStore(db)
	invitesStore := store.NewInvitesStore(db)
	shifts := store.NewShiftsStore(db)
	timesheetsStore := store.NewTimesheetsStore(db)
	incidentsStore := store.NewIncidentsStore(db)
	audits := store.NewAuditStore(db)

	policy, err := rbac.NewPolicy()
	if err != nil {
		return nil, err
	}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.EffectiveTokenTTL())

	var sender invites.Sender
	if cfg.Mail.Enabled {
		sender = invites.NewSMTPSender(cfg.Mail)
	} else {
		sender = invites.NewLogSender(logger)
	}

	incidentsSvc := incidents.NewService(cfg, incidentsStore, audits, logger)
	invitesSvc := invites.NewService(cfg, invitesStore, users, tenants, sender, audits, logger)
	timesheetsSvc := timesheets.NewService(timesheetsStore, audits, logger)

	var workers []api.BackgroundWorker
	if cfg.Retention.Enabled {
		workers = append(workers, retention.NewWorker(cfg, invitesStore, incidentsStore, audits, logger))
	}

	return &runtimeComposition{
		serverDeps: api.ServerDeps{
			Users:         users,
			Tenants:       tenants,
			Shifts:        shifts,
			Audits:        audits,
			IncidentsS:    incidentsStore,
			IncidentsSvc:  incidentsSvc,
			InvitesSvc:    invitesSvc,
			TimesheetsSvc: timesheetsSvc,
			Tokens:        tokens,
			Policy:        policy,
		},
		workers: workers,
	}, nil
}
