package events

import (
	"time"

	"github.com/spec-kit/guild-tickets/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketClaimed      EventType = "ticket_claimed"
	EventTicketClosed       EventType = "ticket_closed"
	EventTicketReopened     EventType = "ticket_reopened"
	EventParticipantAdded   EventType = "participant_added"
	EventParticipantRemoved EventType = "participant_removed"
	EventWorkspaceUpdated   EventType = "workspace_updated"
)

// AllEventTypes lists every event type.
func AllEventTypes() []EventType {
	return []EventType{
		EventTicketCreated,
		EventTicketClaimed,
		EventTicketClosed,
		EventTicketReopened,
		EventParticipantAdded,
		EventParticipantRemoved,
		EventWorkspaceUpdated,
	}
}

// Event represents a domain event emitted after a successful mutation. The
// effects it carries are requests for the gateway to execute.
type Event struct {
	ID          string            `json:"id"`
	Type        EventType         `json:"type"`
	WorkspaceID string            `json:"workspace_id"`
	TicketID    string            `json:"ticket_id,omitempty"`
	Intent      domain.IntentKind `json:"intent"`
	Actor       domain.Actor      `json:"actor"`
	Timestamp   time.Time         `json:"timestamp"`
	Payload     interface{}       `json:"payload,omitempty"`
	Effects     []domain.Effect   `json:"effects"`
}

// TicketTransitionPayload payload.
type TicketTransitionPayload struct {
	From   domain.TicketStatus `json:"from,omitempty"`
	To     domain.TicketStatus `json:"to"`
	Reason string              `json:"reason,omitempty"`
}

// ParticipantPayload payload.
type ParticipantPayload struct {
	TargetID string `json:"target_id"`
}

// WorkspaceUpdatedPayload payload.
type WorkspaceUpdatedPayload struct {
	Change string `json:"change"`
	Key    string `json:"key,omitempty"`
	Value  string `json:"value,omitempty"`
}
