package auth

import "github.com/spec-kit/guild-tickets/internal/domain"

// IsStaff reports whether the actor is explicitly listed as staff or holds
// any configured staff role. Roles come from the caller; they are never
// looked up here.
func IsStaff(cfg *domain.WorkspaceConfig, actorID string, roles []string) bool {
	if cfg == nil {
		return false
	}
	if actorID != "" && cfg.HasStaffMember(actorID) {
		return true
	}
	for _, role := range roles {
		if cfg.HasStaffRole(role) {
			return true
		}
	}
	return false
}
