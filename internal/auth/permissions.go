package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/spec-kit/guild-tickets/internal/domain"
)

// Subjects evaluated by the permission matrix.
const (
	SubjectMember = "member"
	SubjectOwner  = "owner"
	SubjectStaff  = "staff"
	SubjectAdmin  = "admin"
)

const actionExecute = "execute"

const permissionModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

var defaultGrants = map[string][]domain.IntentKind{
	SubjectMember: {
		domain.IntentCreateTicket,
		domain.IntentQueryOwnerTickets,
	},
	SubjectOwner: {
		domain.IntentCloseTicket,
		domain.IntentQueryTicket,
	},
	SubjectStaff: {
		domain.IntentClaimTicket,
		domain.IntentCloseTicket,
		domain.IntentReopenTicket,
		domain.IntentAddParticipant,
		domain.IntentRemoveParticipant,
		domain.IntentQueryTicket,
		domain.IntentListStaff,
	},
	SubjectAdmin: {
		domain.IntentConfigureSetting,
		domain.IntentAddStaff,
		domain.IntentRemoveStaff,
		domain.IntentAddStaffRole,
		domain.IntentRemoveStaffRole,
		domain.IntentQueryStats,
	},
}

// Permissions decides which intents a set of subjects may execute.
type Permissions struct {
	enforcer *casbin.SyncedEnforcer
}

// NewPermissions builds the intent matrix. admin inherits staff, staff
// inherits member.
func NewPermissions() (*Permissions, error) {
	m, err := model.NewModelFromString(permissionModel)
	if err != nil {
		return nil, fmt.Errorf("permission model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("permission enforcer: %w", err)
	}

	for sub, kinds := range defaultGrants {
		for _, kind := range kinds {
			if _, err := enforcer.AddPolicy(sub, string(kind), actionExecute); err != nil {
				return nil, fmt.Errorf("grant %s to %s: %w", kind, sub, err)
			}
		}
	}
	for _, pair := range [][2]string{{SubjectAdmin, SubjectStaff}, {SubjectStaff, SubjectMember}} {
		if _, err := enforcer.AddGroupingPolicy(pair[0], pair[1]); err != nil {
			return nil, fmt.Errorf("inherit %s from %s: %w", pair[0], pair[1], err)
		}
	}

	return &Permissions{enforcer: enforcer}, nil
}

// Allowed reports whether any of the subjects may execute kind.
func (p *Permissions) Allowed(kind domain.IntentKind, subjects ...string) (bool, error) {
	for _, sub := range subjects {
		ok, err := p.enforcer.Enforce(sub, string(kind), actionExecute)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// SubjectsFor derives the matrix subjects of an actor against a fresh
// workspace config. ownerID is the owner of the targeted ticket, if any.
func SubjectsFor(cfg *domain.WorkspaceConfig, actor domain.Actor, ownerID string) []string {
	subjects := []string{SubjectMember}
	if ownerID != "" && actor.ID == ownerID {
		subjects = append(subjects, SubjectOwner)
	}
	if IsStaff(cfg, actor.ID, actor.Roles) {
		subjects = append(subjects, SubjectStaff)
	}
	if actor.Admin {
		subjects = append(subjects, SubjectAdmin)
	}
	return subjects
}
