package domain

import "time"

// EffectType enumerates the requests the core hands to the platform collaborator.
type EffectType string

const (
	EffectCreateConversation EffectType = "create_conversation"
	EffectGrantAccess        EffectType = "grant_access"
	EffectRevokeAccess       EffectType = "revoke_access"
	EffectPostMessage        EffectType = "post_message"
	EffectScheduleDeletion   EffectType = "schedule_deletion"
)

// PrincipalKind says whether an access grant targets a user or a role.
type PrincipalKind string

const (
	PrincipalMember PrincipalKind = "member"
	PrincipalRole   PrincipalKind = "role"
)

// Message templates; rendering belongs to the collaborator.
const (
	TemplateTicketCreated      = "ticket.created"
	TemplateTicketClaimed      = "ticket.claimed"
	TemplateTicketClosed       = "ticket.closed"
	TemplateTicketReopened     = "ticket.reopened"
	TemplateParticipantAdded   = "ticket.participant_added"
	TemplateParticipantRemoved = "ticket.participant_removed"
	TemplateLogTicketCreated   = "log.ticket_created"
	TemplateLogTicketClosed    = "log.ticket_closed"
)

// Effect is a declarative side-effect request. Its outcome never rolls back
// ticket state already persisted.
type Effect struct {
	Type        EffectType `json:"type"`
	WorkspaceID string     `json:"workspace_id"`
	TicketID    string     `json:"ticket_id,omitempty"`
	Payload     any        `json:"payload"`
}

// AccessGrant names one principal allowed into a conversation.
type AccessGrant struct {
	PrincipalID string        `json:"principal_id"`
	Kind        PrincipalKind `json:"kind"`
}

// CreateConversationPayload asks for a hosting conversation.
type CreateConversationPayload struct {
	ConversationRef string        `json:"conversation_ref"`
	Name            string        `json:"name"`
	CategoryName    string        `json:"category_name"`
	Access          []AccessGrant `json:"access"`
}

// AccessPayload grants or revokes a single principal.
type AccessPayload struct {
	ConversationRef string      `json:"conversation_ref"`
	Grant           AccessGrant `json:"grant"`
}

// PostMessagePayload targets either a ticket conversation or a named channel.
type PostMessagePayload struct {
	ConversationRef string         `json:"conversation_ref,omitempty"`
	ChannelName     string         `json:"channel_name,omitempty"`
	Template        string         `json:"template"`
	Fields          map[string]any `json:"fields,omitempty"`
}

// ScheduleDeletionPayload asks for a conversation to be removed after a delay.
type ScheduleDeletionPayload struct {
	ConversationRef string `json:"conversation_ref"`
	DelayMillis     int64  `json:"delay_ms"`
}

// Delay returns the requested delay.
func (p ScheduleDeletionPayload) Delay() time.Duration {
	return time.Duration(p.DelayMillis) * time.Millisecond
}

// Outcome is what a dispatched intent hands back to the transport.
type Outcome struct {
	Ticket   *Ticket      `json:"ticket,omitempty"`
	Tickets  []*Ticket    `json:"tickets,omitempty"`
	Stats    *Stats       `json:"stats,omitempty"`
	Staff    *StaffRoster `json:"staff,omitempty"`
	Settings *Settings    `json:"settings,omitempty"`
	Effects  []Effect     `json:"effects,omitempty"`
}

// Stats are derived counts for a workspace.
type Stats struct {
	Total          int `json:"total"`
	Open           int `json:"open"`
	Claimed        int `json:"claimed"`
	Closed         int `json:"closed"`
	Reopened       int `json:"reopened"`
	StaffCount     int `json:"staffCount"`
	StaffRoleCount int `json:"staffRoleCount"`
}

// StaffRoster lists who is staff in a workspace.
type StaffRoster struct {
	Members []string `json:"members"`
	Roles   []string `json:"roles"`
}
