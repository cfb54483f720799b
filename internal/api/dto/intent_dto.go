package dto

import (
	"encoding/json"
	"fmt"

	"github.com/spec-kit/guild-tickets/internal/domain"
	apperrors "github.com/spec-kit/guild-tickets/pkg/util/errorutil"
)

// ActorPayload is the platform user behind an intent.
type ActorPayload struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles,omitempty"`
	Admin bool     `json:"admin,omitempty"`
}

// IntentRequest is the wire envelope posted by the gateway. Only the fields
// relevant to Type are read.
type IntentRequest struct {
	Type            domain.IntentKind `json:"type"`
	WorkspaceID     string            `json:"workspaceId"`
	Actor           ActorPayload      `json:"actor"`
	TicketID        string            `json:"ticketId,omitempty"`
	TargetID        string            `json:"targetId,omitempty"`
	RoleID          string            `json:"roleId,omitempty"`
	Category        string            `json:"category,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	ConversationRef string            `json:"conversationRef,omitempty"`
	Key             string            `json:"key,omitempty"`
	Value           string            `json:"value,omitempty"`
}

// DecodeIntent validates body against the intent schema and converts it to
// a domain intent.
func DecodeIntent(body []byte) (domain.Intent, error) {
	if err := ValidateIntent(body); err != nil {
		return nil, err
	}
	var req IntentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, apperrors.NewValidationError("invalid payload", nil)
	}
	return req.ToIntent()
}

// ToIntent maps the envelope onto its typed variant.
func (r IntentRequest) ToIntent() (domain.Intent, error) {
	env := domain.Envelope{
		WorkspaceID: r.WorkspaceID,
		Actor:       domain.Actor{ID: r.Actor.ID, Roles: r.Actor.Roles, Admin: r.Actor.Admin},
	}
	switch r.Type {
	case domain.IntentCreateTicket:
		return domain.CreateTicket{Envelope: env, Category: r.Category, Reason: r.Reason, ConversationRef: r.ConversationRef}, nil
	case domain.IntentClaimTicket:
		return domain.ClaimTicket{Envelope: env, TicketID: r.TicketID}, nil
	case domain.IntentCloseTicket:
		return domain.CloseTicket{Envelope: env, TicketID: r.TicketID, Reason: r.Reason}, nil
	case domain.IntentReopenTicket:
		return domain.ReopenTicket{Envelope: env, TicketID: r.TicketID}, nil
	case domain.IntentAddParticipant:
		return domain.AddParticipant{Envelope: env, TicketID: r.TicketID, TargetID: r.TargetID}, nil
	case domain.IntentRemoveParticipant:
		return domain.RemoveParticipant{Envelope: env, TicketID: r.TicketID, TargetID: r.TargetID}, nil
	case domain.IntentConfigureSetting:
		return domain.ConfigureSetting{Envelope: env, Key: r.Key, Value: r.Value}, nil
	case domain.IntentAddStaff:
		return domain.AddStaff{Envelope: env, TargetID: r.TargetID}, nil
	case domain.IntentRemoveStaff:
		return domain.RemoveStaff{Envelope: env, TargetID: r.TargetID}, nil
	case domain.IntentAddStaffRole:
		return domain.AddStaffRole{Envelope: env, RoleID: r.RoleID}, nil
	case domain.IntentRemoveStaffRole:
		return domain.RemoveStaffRole{Envelope: env, RoleID: r.RoleID}, nil
	case domain.IntentQueryStats:
		return domain.QueryStats{Envelope: env}, nil
	case domain.IntentQueryTicket:
		return domain.QueryTicket{Envelope: env, TicketID: r.TicketID}, nil
	case domain.IntentQueryOwnerTickets:
		return domain.QueryOwnerTickets{Envelope: env}, nil
	case domain.IntentListStaff:
		return domain.ListStaff{Envelope: env}, nil
	}
	return nil, apperrors.NewValidationError(fmt.Sprintf("unknown intent type %q", r.Type), nil)
}

// IntentResponse wraps a dispatched outcome.
type IntentResponse struct {
	Data *domain.Outcome `json:"data"`
}

// TokenRequest exchanges gateway credentials for a token.
type TokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// TokenResponse returns an access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
}
