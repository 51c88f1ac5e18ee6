package rbac

import (
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Permission = string

const (
	PermIncidentsView   Permission = "incidents.view"
	PermIncidentsReport Permission = "incidents.report"
	PermIncidentsManage Permission = "incidents.manage"
	PermShiftsView      Permission = "shifts.view"
	PermShiftsManage    Permission = "shifts.manage"
	PermTimesheetsClock Permission = "timesheets.clock"
	PermTimesheetsView  Permission = "timesheets.view"
	PermInvitesManage   Permission = "invites.manage"
	PermUsersManage     Permission = "users.manage"
	PermTenantsManage   Permission = "tenants.manage"
	PermAuditView       Permission = "audit.view"
)

const (
	RoleAdmin     = "ADMIN"
	RoleScheduler = "SCHEDULER"
	RoleStaff     = "STAFF"
)

const modelText = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj
`

var grants = map[string][]Permission{
	RoleAdmin: {
		PermIncidentsView, PermIncidentsReport, PermIncidentsManage,
		PermShiftsView, PermShiftsManage,
		PermTimesheetsClock, PermTimesheetsView,
		PermInvitesManage, PermUsersManage, PermTenantsManage, PermAuditView,
	},
	RoleScheduler: {
		PermIncidentsView, PermIncidentsReport, PermIncidentsManage,
		PermShiftsView, PermShiftsManage,
		PermTimesheetsClock, PermTimesheetsView,
		PermInvitesManage,
	},
	RoleStaff: {
		PermIncidentsView, PermIncidentsReport,
		PermShiftsView,
		PermTimesheetsClock,
	},
}

// Policy answers role-permission checks. Grants are fixed at startup.
type Policy struct {
	enforcer *casbin.Enforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}
	for role, perms := range grants {
		for _, perm := range perms {
			if _, err := e.AddPolicy(role, string(perm)); err != nil {
				return nil, err
			}
		}
	}
	return &Policy{enforcer: e}, nil
}

func (p *Policy) Allowed(roles []string, perm Permission) bool {
	for _, role := range roles {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		ok, err := p.enforcer.Enforce(role, string(perm))
		if err == nil && ok {
			return true
		}
	}
	return false
}

// KnownRole reports whether the role name is one this policy grants
// anything to. Used when validating invites and user updates.
func KnownRole(role string) bool {
	_, ok := grants[strings.ToUpper(strings.TrimSpace(role))]
	return ok
}
