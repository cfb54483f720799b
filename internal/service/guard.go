package service

import (
	"github.com/spec-kit/guild-tickets/internal/auth"
	"github.com/spec-kit/guild-tickets/internal/domain"
	apperrors "github.com/spec-kit/guild-tickets/pkg/util/errorutil"
)

// guard applies the intent permission matrix to an actor. It is always
// evaluated against the config loaded inside the current critical section.
type guard struct {
	perms *auth.Permissions
}

func (g guard) check(cfg *domain.WorkspaceConfig, actor domain.Actor, kind domain.IntentKind, ownerID string) error {
	if actor.ID == "" {
		return apperrors.NewValidationError("actor id is required", nil)
	}
	allowed, err := g.perms.Allowed(kind, auth.SubjectsFor(cfg, actor, ownerID)...)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if !allowed {
		return apperrors.NewForbidden("actor is not permitted to " + humanize(kind))
	}
	return nil
}

func humanize(kind domain.IntentKind) string {
	out := []byte(kind)
	for i, b := range out {
		if b == '_' {
			out[i] = ' '
		}
	}
	return string(out)
}
