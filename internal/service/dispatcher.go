package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-tickets/internal/domain"
	"github.com/spec-kit/guild-tickets/internal/events"
	"github.com/spec-kit/guild-tickets/internal/observability"
	apperrors "github.com/spec-kit/guild-tickets/pkg/util/errorutil"
)

// Dispatcher routes decoded intents to the owning component and announces
// successful mutations on the event bus.
type Dispatcher struct {
	lifecycle *TicketLifecycle
	admin     *WorkspaceAdmin
	events    events.Dispatcher
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// DispatcherDependencies bundles collaborators for Dispatcher.
type DispatcherDependencies struct {
	Lifecycle *TicketLifecycle
	Admin     *WorkspaceAdmin
	Events    events.Dispatcher
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// NewDispatcher constructs the intent dispatcher.
func NewDispatcher(deps DispatcherDependencies) *Dispatcher {
	d := &Dispatcher{
		lifecycle: deps.Lifecycle,
		admin:     deps.Admin,
		events:    deps.Events,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       time.Now,
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d
}

// Dispatch executes one intent. Guard failures come back as DomainErrors;
// event delivery problems are logged and never fail the intent.
func (d *Dispatcher) Dispatch(ctx context.Context, intent domain.Intent) (*domain.Outcome, error) {
	if intent == nil {
		return nil, apperrors.NewValidationError("intent is required", nil)
	}
	if intent.Workspace() == "" {
		return nil, apperrors.NewValidationError("workspace id is required", nil)
	}

	start := d.now()
	outcome, event, err := d.route(ctx, intent)

	code := "OK"
	if err != nil {
		code = apperrors.CodeOf(err)
	}
	if d.metrics != nil {
		d.metrics.RecordIntent(string(intent.Kind()), code, time.Since(start))
	}
	if err != nil {
		d.logger.Info("intent rejected",
			zap.String("intent", string(intent.Kind())),
			zap.String("workspace_id", intent.Workspace()),
			zap.String("actor_id", intent.Principal().ID),
			zap.String("code", code),
		)
		return nil, err
	}

	if event != nil && d.events != nil {
		d.publish(ctx, intent, outcome, *event)
	}
	return outcome, nil
}

func (d *Dispatcher) route(ctx context.Context, intent domain.Intent) (*domain.Outcome, *events.Event, error) {
	switch in := intent.(type) {
	case domain.CreateTicket:
		out, err := d.lifecycle.Create(ctx, in)
		return out, ticketEvent(events.EventTicketCreated, out, events.TicketTransitionPayload{To: domain.TicketStatusOpen, Reason: reasonOf(out)}), err
	case domain.ClaimTicket:
		out, err := d.lifecycle.Claim(ctx, in)
		return out, ticketEvent(events.EventTicketClaimed, out, events.TicketTransitionPayload{To: domain.TicketStatusClaimed}), err
	case domain.CloseTicket:
		out, err := d.lifecycle.Close(ctx, in)
		return out, ticketEvent(events.EventTicketClosed, out, events.TicketTransitionPayload{To: domain.TicketStatusClosed, Reason: closeReasonOf(out)}), err
	case domain.ReopenTicket:
		out, err := d.lifecycle.Reopen(ctx, in)
		return out, ticketEvent(events.EventTicketReopened, out, events.TicketTransitionPayload{From: domain.TicketStatusClosed, To: domain.TicketStatusReopened}), err
	case domain.AddParticipant:
		out, err := d.lifecycle.AddParticipant(ctx, in)
		return out, ticketEvent(events.EventParticipantAdded, out, events.ParticipantPayload{TargetID: in.TargetID}), err
	case domain.RemoveParticipant:
		out, err := d.lifecycle.RemoveParticipant(ctx, in)
		return out, ticketEvent(events.EventParticipantRemoved, out, events.ParticipantPayload{TargetID: in.TargetID}), err
	case domain.ConfigureSetting:
		out, err := d.admin.ConfigureSetting(ctx, in)
		return out, workspaceEvent(out, events.WorkspaceUpdatedPayload{Change: string(in.Kind()), Key: in.Key, Value: in.Value}), err
	case domain.AddStaff:
		out, err := d.admin.AddStaff(ctx, in)
		return out, workspaceEvent(out, events.WorkspaceUpdatedPayload{Change: string(in.Kind()), Value: in.TargetID}), err
	case domain.RemoveStaff:
		out, err := d.admin.RemoveStaff(ctx, in)
		return out, workspaceEvent(out, events.WorkspaceUpdatedPayload{Change: string(in.Kind()), Value: in.TargetID}), err
	case domain.AddStaffRole:
		out, err := d.admin.AddStaffRole(ctx, in)
		return out, workspaceEvent(out, events.WorkspaceUpdatedPayload{Change: string(in.Kind()), Value: in.RoleID}), err
	case domain.RemoveStaffRole:
		out, err := d.admin.RemoveStaffRole(ctx, in)
		return out, workspaceEvent(out, events.WorkspaceUpdatedPayload{Change: string(in.Kind()), Value: in.RoleID}), err
	case domain.QueryStats:
		out, err := d.admin.Stats(ctx, in)
		return out, nil, err
	case domain.ListStaff:
		out, err := d.admin.ListStaff(ctx, in)
		return out, nil, err
	case domain.QueryTicket:
		out, err := d.lifecycle.Ticket(ctx, in)
		return out, nil, err
	case domain.QueryOwnerTickets:
		out, err := d.lifecycle.OwnerTickets(ctx, in)
		return out, nil, err
	default:
		return nil, nil, apperrors.NewInternalError(fmt.Errorf("unhandled intent %T", intent))
	}
}

func (d *Dispatcher) publish(ctx context.Context, intent domain.Intent, outcome *domain.Outcome, event events.Event) {
	event.ID = uuid.NewString()
	event.WorkspaceID = intent.Workspace()
	event.Intent = intent.Kind()
	event.Actor = intent.Principal()
	event.Timestamp = d.now().UTC()
	if outcome != nil {
		event.Effects = outcome.Effects
	}
	if err := d.events.Publish(ctx, event); err != nil {
		d.logger.Warn("event delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("workspace_id", event.WorkspaceID),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err),
		)
	}
}

// ticketEvent returns nil when the intent failed so no event is built for it.
func ticketEvent(typ events.EventType, out *domain.Outcome, payload any) *events.Event {
	if out == nil || out.Ticket == nil {
		return nil
	}
	return &events.Event{Type: typ, TicketID: out.Ticket.ID, Payload: payload}
}

func workspaceEvent(out *domain.Outcome, payload events.WorkspaceUpdatedPayload) *events.Event {
	if out == nil {
		return nil
	}
	return &events.Event{Type: events.EventWorkspaceUpdated, Payload: payload}
}

func reasonOf(out *domain.Outcome) string {
	if out == nil || out.Ticket == nil {
		return ""
	}
	return out.Ticket.Reason
}

func closeReasonOf(out *domain.Outcome) string {
	if out == nil || out.Ticket == nil {
		return ""
	}
	return deref(out.Ticket.CloseReason)
}
