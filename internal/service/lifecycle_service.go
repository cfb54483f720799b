package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-tickets/internal/auth"
	"github.com/spec-kit/guild-tickets/internal/domain"
	"github.com/spec-kit/guild-tickets/internal/repository"
	apperrors "github.com/spec-kit/guild-tickets/pkg/util/errorutil"
)

// TicketLifecycle runs the ticket state machine. Every transition is applied
// inside WorkspaceRepository.Update so guards see the freshest document.
type TicketLifecycle struct {
	workspaces  repository.WorkspaceRepository
	registry    *repository.TicketRegistry
	guard       guard
	deleteDelay time.Duration
	now         func() time.Time
	newRef      func() string
	logger      *zap.Logger
}

// LifecycleDependencies bundles collaborators for the lifecycle.
type LifecycleDependencies struct {
	Workspaces  repository.WorkspaceRepository
	Registry    *repository.TicketRegistry
	Permissions *auth.Permissions
	DeleteDelay time.Duration
	Logger      *zap.Logger
	// Now and NewConversationRef are overridable for tests.
	Now                func() time.Time
	NewConversationRef func() string
}

// NewTicketLifecycle constructs the service.
func NewTicketLifecycle(deps LifecycleDependencies) *TicketLifecycle {
	s := &TicketLifecycle{
		workspaces:  deps.Workspaces,
		registry:    deps.Registry,
		guard:       guard{perms: deps.Permissions},
		deleteDelay: deps.DeleteDelay,
		now:         deps.Now,
		newRef:      deps.NewConversationRef,
		logger:      deps.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newRef == nil {
		s.newRef = func() string { return "conv-" + uuid.NewString() }
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Create opens a ticket for the acting user. The conversation ref doubles as
// an idempotency key: replaying a create with a ref that already hosts one of
// the owner's tickets returns that ticket instead of opening another.
func (s *TicketLifecycle) Create(ctx context.Context, in domain.CreateTicket) (*domain.Outcome, error) {
	ref := strings.TrimSpace(in.ConversationRef)
	if ref == "" {
		ref = s.newRef()
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = domain.DefaultTicketCategory
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = domain.DefaultTicketReason
	}
	owner := in.Actor.ID

	var (
		ticket   *domain.Ticket
		effects  []domain.Effect
		replayed bool
	)
	saved, err := s.workspaces.Update(ctx, in.WorkspaceID, func(cfg *domain.WorkspaceConfig) error {
		ticket, effects, replayed = nil, nil, false

		if err := s.guard.check(cfg, in.Actor, in.Kind(), ""); err != nil {
			return err
		}

		if existing, ok := repository.FindByConversation(cfg, ref); ok {
			if existing.OwnerID != owner {
				return apperrors.NewConflict("conversation already hosts another ticket", map[string]any{
					"conversation_ref": ref,
					"ticket_id":        existing.ID,
				})
			}
			ticket, replayed = existing.Clone(), true
			effects = createEffects(cfg, existing)
			return nil
		}

		limit := cfg.Settings.MaxTicketsPerUser
		if repository.OpenCountForOwner(cfg, owner) >= limit {
			return apperrors.NewQuotaExceeded(limit)
		}

		id := repository.AllocateID(cfg)
		t := &domain.Ticket{
			ID:              id,
			WorkspaceID:     cfg.WorkspaceID,
			ConversationRef: ref,
			OwnerID:         owner,
			Category:        category,
			Reason:          reason,
			Status:          domain.TicketStatusOpen,
			CreatedAt:       s.now().UTC(),
		}
		cfg.Tickets[id] = t
		ticket = t.Clone()
		effects = createEffects(cfg, t)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if replayed {
		s.logger.Info("ticket create replayed",
			zap.String("workspace_id", in.WorkspaceID),
			zap.String("ticket_id", ticket.ID),
			zap.String("conversation_ref", ref),
		)
	} else {
		s.registry.Mirror(ctx, in.WorkspaceID, saved.Version, ticket)
		s.logger.Info("ticket created",
			zap.String("workspace_id", in.WorkspaceID),
			zap.String("ticket_id", ticket.ID),
			zap.String("owner_id", owner),
		)
	}
	return &domain.Outcome{Ticket: ticket, Effects: effects}, nil
}

// Claim assigns an open or reopened ticket to the acting staff member.
func (s *TicketLifecycle) Claim(ctx context.Context, in domain.ClaimTicket) (*domain.Outcome, error) {
	return s.transition(ctx, in, func(cfg *domain.WorkspaceConfig, t *domain.Ticket) ([]domain.Effect, error) {
		switch {
		case t.Status == domain.TicketStatusClosed:
			return nil, apperrors.NewInvalidState("cannot claim a closed ticket", statusDetails(t))
		case t.IsClaimed() || t.Status == domain.TicketStatusClaimed:
			return nil, apperrors.NewAlreadyClaimed(t.ID, deref(t.ClaimedBy))
		case !t.Status.Claimable():
			return nil, apperrors.NewInvalidState("ticket is not open", statusDetails(t))
		}

		now := s.now().UTC()
		claimer := in.Actor.ID
		t.Status = domain.TicketStatusClaimed
		t.ClaimedBy = &claimer
		t.ClaimedAt = &now

		return []domain.Effect{
			postToConversation(t, domain.TemplateTicketClaimed, map[string]any{
				"ticketId":  t.ID,
				"claimedBy": claimer,
			}),
		}, nil
	})
}

// AddParticipant grants a user access to the ticket conversation.
func (s *TicketLifecycle) AddParticipant(ctx context.Context, in domain.AddParticipant) (*domain.Outcome, error) {
	if strings.TrimSpace(in.TargetID) == "" {
		return nil, apperrors.NewValidationError("target id is required", nil)
	}
	return s.inspect(ctx, in, func(cfg *domain.WorkspaceConfig, t *domain.Ticket) ([]domain.Effect, error) {
		return []domain.Effect{
			accessEffect(domain.EffectGrantAccess, t, domain.AccessGrant{PrincipalID: in.TargetID, Kind: domain.PrincipalMember}),
			postToConversation(t, domain.TemplateParticipantAdded, map[string]any{
				"ticketId": t.ID,
				"targetId": in.TargetID,
				"addedBy":  in.Actor.ID,
			}),
		}, nil
	})
}

// RemoveParticipant revokes a user's access. The owner can never be removed.
func (s *TicketLifecycle) RemoveParticipant(ctx context.Context, in domain.RemoveParticipant) (*domain.Outcome, error) {
	if strings.TrimSpace(in.TargetID) == "" {
		return nil, apperrors.NewValidationError("target id is required", nil)
	}
	return s.inspect(ctx, in, func(cfg *domain.WorkspaceConfig, t *domain.Ticket) ([]domain.Effect, error) {
		if in.TargetID == t.OwnerID {
			return nil, apperrors.NewCannotRemoveOwner(t.ID)
		}
		return []domain.Effect{
			accessEffect(domain.EffectRevokeAccess, t, domain.AccessGrant{PrincipalID: in.TargetID, Kind: domain.PrincipalMember}),
			postToConversation(t, domain.TemplateParticipantRemoved, map[string]any{
				"ticketId":  t.ID,
				"targetId":  in.TargetID,
				"removedBy": in.Actor.ID,
			}),
		}, nil
	})
}

// Close retires a ticket and asks for its conversation to be deleted later.
func (s *TicketLifecycle) Close(ctx context.Context, in domain.CloseTicket) (*domain.Outcome, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = domain.DefaultTicketReason
	}
	return s.transition(ctx, in, func(cfg *domain.WorkspaceConfig, t *domain.Ticket) ([]domain.Effect, error) {
		if t.Status == domain.TicketStatusClosed {
			return nil, apperrors.NewAlreadyClosed(t.ID)
		}

		now := s.now().UTC()
		closer := in.Actor.ID
		t.Status = domain.TicketStatusClosed
		t.ClosedAt = &now
		t.ClosedBy = &closer
		t.CloseReason = &reason

		fields := map[string]any{
			"ticketId": t.ID,
			"ownerId":  t.OwnerID,
			"closedBy": closer,
			"reason":   reason,
		}
		return []domain.Effect{
			postToConversation(t, domain.TemplateTicketClosed, fields),
			postToLogs(cfg, t, domain.TemplateLogTicketClosed, fields),
			{
				Type:        domain.EffectScheduleDeletion,
				WorkspaceID: t.WorkspaceID,
				TicketID:    t.ID,
				Payload: domain.ScheduleDeletionPayload{
					ConversationRef: t.ConversationRef,
					DelayMillis:     s.deleteDelay.Milliseconds(),
				},
			},
		}, nil
	})
}

// Reopen moves a closed ticket back into play. The close record and the
// previous claim are cleared so the ticket can be claimed again.
func (s *TicketLifecycle) Reopen(ctx context.Context, in domain.ReopenTicket) (*domain.Outcome, error) {
	return s.transition(ctx, in, func(cfg *domain.WorkspaceConfig, t *domain.Ticket) ([]domain.Effect, error) {
		if t.Status != domain.TicketStatusClosed {
			return nil, apperrors.NewInvalidState("only closed tickets can be reopened", statusDetails(t))
		}

		now := s.now().UTC()
		t.Status = domain.TicketStatusReopened
		t.ReopenedAt = &now
		t.ClosedAt = nil
		t.ClosedBy = nil
		t.CloseReason = nil
		t.ClaimedBy = nil
		t.ClaimedAt = nil

		// The conversation may already be gone; asking for it by the same ref
		// lets the gateway restore or keep it.
		return []domain.Effect{
			conversationEffect(cfg, t),
			postToConversation(t, domain.TemplateTicketReopened, map[string]any{
				"ticketId":   t.ID,
				"reopenedBy": in.Actor.ID,
			}),
		}, nil
	})
}

// Ticket returns one ticket, for transcript headers and dashboards.
func (s *TicketLifecycle) Ticket(ctx context.Context, in domain.QueryTicket) (*domain.Outcome, error) {
	cfg, err := s.workspaces.Load(ctx, in.WorkspaceID)
	if err != nil {
		return nil, err
	}
	t, err := s.authorizedTicket(cfg, in.Actor, in.Kind(), in.TicketID)
	if err != nil {
		return nil, err
	}
	return &domain.Outcome{Ticket: t.Clone()}, nil
}

// OwnerTickets lists the acting user's tickets.
func (s *TicketLifecycle) OwnerTickets(ctx context.Context, in domain.QueryOwnerTickets) (*domain.Outcome, error) {
	cfg, err := s.workspaces.Load(ctx, in.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.check(cfg, in.Actor, in.Kind(), ""); err != nil {
		return nil, err
	}
	return &domain.Outcome{Tickets: repository.ListByOwner(cfg, in.Actor.ID)}, nil
}

// LookupTicket reads a ticket through the mirror without actor checks. It
// backs the authenticated dashboard endpoint.
func (s *TicketLifecycle) LookupTicket(ctx context.Context, workspaceID, ticketID string) (*domain.Ticket, error) {
	return s.registry.Lookup(ctx, workspaceID, ticketID)
}

type ticketStep func(cfg *domain.WorkspaceConfig, t *domain.Ticket) ([]domain.Effect, error)

// transition applies step to the ticket inside the critical section, then
// refreshes its mirror.
func (s *TicketLifecycle) transition(ctx context.Context, in domain.TicketScoped, step ticketStep) (*domain.Outcome, error) {
	var (
		ticket  *domain.Ticket
		effects []domain.Effect
	)
	saved, err := s.workspaces.Update(ctx, in.Workspace(), func(cfg *domain.WorkspaceConfig) error {
		ticket, effects = nil, nil
		t, err := s.authorizedTicket(cfg, in.Principal(), in.Kind(), in.Ticket())
		if err != nil {
			return err
		}
		effects, err = step(cfg, t)
		if err != nil {
			return err
		}
		ticket = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.registry.Mirror(ctx, in.Workspace(), saved.Version, ticket)
	s.logger.Info("ticket transitioned",
		zap.String("workspace_id", in.Workspace()),
		zap.String("ticket_id", ticket.ID),
		zap.String("intent", string(in.Kind())),
		zap.String("status", string(ticket.Status)),
	)
	return &domain.Outcome{Ticket: ticket, Effects: effects}, nil
}

// inspect runs a guard-only step that leaves the ticket untouched. It reads
// without taking the workspace lock since nothing is written.
func (s *TicketLifecycle) inspect(ctx context.Context, in domain.TicketScoped, step ticketStep) (*domain.Outcome, error) {
	cfg, err := s.workspaces.Load(ctx, in.Workspace())
	if err != nil {
		return nil, err
	}
	t, err := s.authorizedTicket(cfg, in.Principal(), in.Kind(), in.Ticket())
	if err != nil {
		return nil, err
	}
	if t.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewInvalidState("ticket is closed", statusDetails(t))
	}
	effects, err := step(cfg, t)
	if err != nil {
		return nil, err
	}
	return &domain.Outcome{Ticket: t.Clone(), Effects: effects}, nil
}

// authorizedTicket checks permissions before revealing whether the ticket
// exists, so actors without access learn nothing about ticket ids.
func (s *TicketLifecycle) authorizedTicket(cfg *domain.WorkspaceConfig, actor domain.Actor, kind domain.IntentKind, ticketID string) (*domain.Ticket, error) {
	t, lookupErr := repository.GetTicket(cfg, ticketID)
	owner := ""
	if lookupErr == nil {
		owner = t.OwnerID
	}
	if err := s.guard.check(cfg, actor, kind, owner); err != nil {
		return nil, err
	}
	if lookupErr != nil {
		return nil, lookupErr
	}
	return t, nil
}

func createEffects(cfg *domain.WorkspaceConfig, t *domain.Ticket) []domain.Effect {
	fields := map[string]any{
		"ticketId": t.ID,
		"ownerId":  t.OwnerID,
		"category": t.Category,
		"reason":   t.Reason,
	}
	return []domain.Effect{
		conversationEffect(cfg, t),
		postToConversation(t, domain.TemplateTicketCreated, fields),
		postToLogs(cfg, t, domain.TemplateLogTicketCreated, fields),
	}
}

// conversationEffect requests the hosting conversation, visible to the owner
// and every staff member and staff role.
func conversationEffect(cfg *domain.WorkspaceConfig, t *domain.Ticket) domain.Effect {
	access := []domain.AccessGrant{{PrincipalID: t.OwnerID, Kind: domain.PrincipalMember}}
	for _, m := range cfg.StaffMembers {
		if m != t.OwnerID {
			access = append(access, domain.AccessGrant{PrincipalID: m, Kind: domain.PrincipalMember})
		}
	}
	for _, r := range cfg.StaffRoles {
		access = append(access, domain.AccessGrant{PrincipalID: r, Kind: domain.PrincipalRole})
	}
	return domain.Effect{
		Type:        domain.EffectCreateConversation,
		WorkspaceID: t.WorkspaceID,
		TicketID:    t.ID,
		Payload: domain.CreateConversationPayload{
			ConversationRef: t.ConversationRef,
			Name:            cfg.Settings.TicketPrefix + t.ID,
			CategoryName:    cfg.Settings.TicketCategoryName,
			Access:          access,
		},
	}
}

func accessEffect(typ domain.EffectType, t *domain.Ticket, grant domain.AccessGrant) domain.Effect {
	return domain.Effect{
		Type:        typ,
		WorkspaceID: t.WorkspaceID,
		TicketID:    t.ID,
		Payload:     domain.AccessPayload{ConversationRef: t.ConversationRef, Grant: grant},
	}
}

func postToConversation(t *domain.Ticket, template string, fields map[string]any) domain.Effect {
	return domain.Effect{
		Type:        domain.EffectPostMessage,
		WorkspaceID: t.WorkspaceID,
		TicketID:    t.ID,
		Payload: domain.PostMessagePayload{
			ConversationRef: t.ConversationRef,
			Template:        template,
			Fields:          fields,
		},
	}
}

func postToLogs(cfg *domain.WorkspaceConfig, t *domain.Ticket, template string, fields map[string]any) domain.Effect {
	return domain.Effect{
		Type:        domain.EffectPostMessage,
		WorkspaceID: t.WorkspaceID,
		TicketID:    t.ID,
		Payload: domain.PostMessagePayload{
			ChannelName: cfg.Settings.LogsChannelName,
			Template:    template,
			Fields:      fields,
		},
	}
}

func statusDetails(t *domain.Ticket) map[string]any {
	return map[string]any{"ticket_id": t.ID, "status": string(t.Status)}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
