package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-tickets/internal/auth"
	"github.com/spec-kit/guild-tickets/internal/domain"
	"github.com/spec-kit/guild-tickets/internal/repository"
	apperrors "github.com/spec-kit/guild-tickets/pkg/util/errorutil"
)

// WorkspaceAdmin manages staff membership and workspace settings.
type WorkspaceAdmin struct {
	workspaces repository.WorkspaceRepository
	guard      guard
	defaults   domain.Settings
	logger     *zap.Logger
}

// AdminDependencies bundles collaborators for WorkspaceAdmin.
type AdminDependencies struct {
	Workspaces  repository.WorkspaceRepository
	Permissions *auth.Permissions
	// Defaults are restored when a setting is configured with an empty value.
	Defaults domain.Settings
	Logger   *zap.Logger
}

// NewWorkspaceAdmin constructs the service.
func NewWorkspaceAdmin(deps AdminDependencies) *WorkspaceAdmin {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := deps.Defaults
	if defaults.MaxTicketsPerUser < 1 {
		defaults = domain.DefaultSettings()
	}
	return &WorkspaceAdmin{
		workspaces: deps.Workspaces,
		guard:      guard{perms: deps.Permissions},
		defaults:   defaults,
		logger:     logger,
	}
}

// AddStaff makes a user explicit staff and opens every live ticket to them.
func (s *WorkspaceAdmin) AddStaff(ctx context.Context, in domain.AddStaff) (*domain.Outcome, error) {
	target := strings.TrimSpace(in.TargetID)
	if target == "" {
		return nil, apperrors.NewValidationError("target id is required", nil)
	}
	return s.rosterChange(ctx, in, func(cfg *domain.WorkspaceConfig) ([]domain.Effect, error) {
		if !cfg.AddStaffMember(target) {
			return nil, apperrors.NewConflict("user is already staff", map[string]any{"target_id": target})
		}
		return liveTicketAccess(cfg, domain.EffectGrantAccess, domain.AccessGrant{PrincipalID: target, Kind: domain.PrincipalMember}), nil
	})
}

// RemoveStaff drops explicit staff membership. Tickets the user owns keep
// their access.
func (s *WorkspaceAdmin) RemoveStaff(ctx context.Context, in domain.RemoveStaff) (*domain.Outcome, error) {
	target := strings.TrimSpace(in.TargetID)
	if target == "" {
		return nil, apperrors.NewValidationError("target id is required", nil)
	}
	return s.rosterChange(ctx, in, func(cfg *domain.WorkspaceConfig) ([]domain.Effect, error) {
		if !cfg.RemoveStaffMember(target) {
			return nil, apperrors.NewNotFound("staff member", map[string]any{"target_id": target})
		}
		var effects []domain.Effect
		for _, e := range liveTicketAccess(cfg, domain.EffectRevokeAccess, domain.AccessGrant{PrincipalID: target, Kind: domain.PrincipalMember}) {
			if cfg.Tickets[e.TicketID].OwnerID != target {
				effects = append(effects, e)
			}
		}
		return effects, nil
	})
}

// AddStaffRole registers a role whose holders are staff.
func (s *WorkspaceAdmin) AddStaffRole(ctx context.Context, in domain.AddStaffRole) (*domain.Outcome, error) {
	role := strings.TrimSpace(in.RoleID)
	if role == "" {
		return nil, apperrors.NewValidationError("role id is required", nil)
	}
	return s.rosterChange(ctx, in, func(cfg *domain.WorkspaceConfig) ([]domain.Effect, error) {
		if !cfg.AddStaffRole(role) {
			return nil, apperrors.NewConflict("role is already a staff role", map[string]any{"role_id": role})
		}
		return liveTicketAccess(cfg, domain.EffectGrantAccess, domain.AccessGrant{PrincipalID: role, Kind: domain.PrincipalRole}), nil
	})
}

// RemoveStaffRole unregisters a staff role.
func (s *WorkspaceAdmin) RemoveStaffRole(ctx context.Context, in domain.RemoveStaffRole) (*domain.Outcome, error) {
	role := strings.TrimSpace(in.RoleID)
	if role == "" {
		return nil, apperrors.NewValidationError("role id is required", nil)
	}
	return s.rosterChange(ctx, in, func(cfg *domain.WorkspaceConfig) ([]domain.Effect, error) {
		if !cfg.RemoveStaffRole(role) {
			return nil, apperrors.NewNotFound("staff role", map[string]any{"role_id": role})
		}
		return liveTicketAccess(cfg, domain.EffectRevokeAccess, domain.AccessGrant{PrincipalID: role, Kind: domain.PrincipalRole}), nil
	})
}

// ConfigureSetting writes one setting. An empty value restores the default.
func (s *WorkspaceAdmin) ConfigureSetting(ctx context.Context, in domain.ConfigureSetting) (*domain.Outcome, error) {
	key := strings.ToLower(strings.TrimSpace(in.Key))
	var settings domain.Settings
	_, err := s.workspaces.Update(ctx, in.WorkspaceID, func(cfg *domain.WorkspaceConfig) error {
		if err := s.guard.check(cfg, in.Actor, in.Kind(), ""); err != nil {
			return err
		}
		if err := applySetting(&cfg.Settings, s.defaults, key, in.Value); err != nil {
			return err
		}
		settings = cfg.Settings
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("workspace setting changed",
		zap.String("workspace_id", in.WorkspaceID),
		zap.String("key", key),
		zap.String("actor_id", in.Actor.ID),
	)
	return &domain.Outcome{Settings: &settings}, nil
}

// ListStaff returns the staff roster.
func (s *WorkspaceAdmin) ListStaff(ctx context.Context, in domain.ListStaff) (*domain.Outcome, error) {
	cfg, err := s.workspaces.Load(ctx, in.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.check(cfg, in.Actor, in.Kind(), ""); err != nil {
		return nil, err
	}
	return &domain.Outcome{Staff: roster(cfg)}, nil
}

// Stats computes workspace counts.
func (s *WorkspaceAdmin) Stats(ctx context.Context, in domain.QueryStats) (*domain.Outcome, error) {
	cfg, err := s.workspaces.Load(ctx, in.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.check(cfg, in.Actor, in.Kind(), ""); err != nil {
		return nil, err
	}
	stats := ComputeStats(cfg)
	return &domain.Outcome{Stats: &stats}, nil
}

func (s *WorkspaceAdmin) rosterChange(ctx context.Context, in domain.Intent, change func(cfg *domain.WorkspaceConfig) ([]domain.Effect, error)) (*domain.Outcome, error) {
	var (
		effects []domain.Effect
		staff   *domain.StaffRoster
	)
	_, err := s.workspaces.Update(ctx, in.Workspace(), func(cfg *domain.WorkspaceConfig) error {
		effects, staff = nil, nil
		if err := s.guard.check(cfg, in.Principal(), in.Kind(), ""); err != nil {
			return err
		}
		var err error
		if effects, err = change(cfg); err != nil {
			return err
		}
		staff = roster(cfg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("staff roster changed",
		zap.String("workspace_id", in.Workspace()),
		zap.String("intent", string(in.Kind())),
		zap.Int("members", len(staff.Members)),
		zap.Int("roles", len(staff.Roles)),
	)
	return &domain.Outcome{Staff: staff, Effects: effects}, nil
}

// liveTicketAccess builds one access effect per ticket that is not closed.
func liveTicketAccess(cfg *domain.WorkspaceConfig, typ domain.EffectType, grant domain.AccessGrant) []domain.Effect {
	var effects []domain.Effect
	for _, t := range cfg.SortedTickets() {
		if t.Status == domain.TicketStatusClosed {
			continue
		}
		effects = append(effects, accessEffect(typ, t, grant))
	}
	return effects
}

func roster(cfg *domain.WorkspaceConfig) *domain.StaffRoster {
	return &domain.StaffRoster{
		Members: append([]string{}, cfg.StaffMembers...),
		Roles:   append([]string{}, cfg.StaffRoles...),
	}
}
