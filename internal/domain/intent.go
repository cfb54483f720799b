package domain

// IntentKind names a variant of the Intent union.
type IntentKind string

const (
	IntentCreateTicket      IntentKind = "create_ticket"
	IntentClaimTicket       IntentKind = "claim_ticket"
	IntentCloseTicket       IntentKind = "close_ticket"
	IntentReopenTicket      IntentKind = "reopen_ticket"
	IntentAddParticipant    IntentKind = "add_participant"
	IntentRemoveParticipant IntentKind = "remove_participant"
	IntentConfigureSetting  IntentKind = "configure_setting"
	IntentAddStaff          IntentKind = "add_staff"
	IntentRemoveStaff       IntentKind = "remove_staff"
	IntentAddStaffRole      IntentKind = "add_staff_role"
	IntentRemoveStaffRole   IntentKind = "remove_staff_role"
	IntentQueryStats        IntentKind = "query_stats"
	IntentQueryTicket       IntentKind = "query_ticket"
	IntentQueryOwnerTickets IntentKind = "query_owner_tickets"
	IntentListStaff         IntentKind = "list_staff"
)

// AllIntentKinds lists every variant, in a stable order.
func AllIntentKinds() []IntentKind {
	return []IntentKind{
		IntentCreateTicket,
		IntentClaimTicket,
		IntentCloseTicket,
		IntentReopenTicket,
		IntentAddParticipant,
		IntentRemoveParticipant,
		IntentConfigureSetting,
		IntentAddStaff,
		IntentRemoveStaff,
		IntentAddStaffRole,
		IntentRemoveStaffRole,
		IntentQueryStats,
		IntentQueryTicket,
		IntentQueryOwnerTickets,
		IntentListStaff,
	}
}

// Intent is a normalized external event. The set of implementations is
// closed: only the types in this file satisfy it.
type Intent interface {
	Kind() IntentKind
	Workspace() string
	Principal() Actor
	isIntent()
}

// Envelope carries the fields shared by every intent.
type Envelope struct {
	WorkspaceID string
	Actor       Actor
}

func (e Envelope) Workspace() string { return e.WorkspaceID }
func (e Envelope) Principal() Actor  { return e.Actor }
func (Envelope) isIntent()           {}

type CreateTicket struct {
	Envelope
	Category string
	Reason   string
	// ConversationRef is set when the gateway created the conversation up front.
	ConversationRef string
}

type ClaimTicket struct {
	Envelope
	TicketID string
}

type CloseTicket struct {
	Envelope
	TicketID string
	Reason   string
}

type ReopenTicket struct {
	Envelope
	TicketID string
}

type AddParticipant struct {
	Envelope
	TicketID string
	TargetID string
}

type RemoveParticipant struct {
	Envelope
	TicketID string
	TargetID string
}

type ConfigureSetting struct {
	Envelope
	Key   string
	Value string
}

type AddStaff struct {
	Envelope
	TargetID string
}

type RemoveStaff struct {
	Envelope
	TargetID string
}

type AddStaffRole struct {
	Envelope
	RoleID string
}

type RemoveStaffRole struct {
	Envelope
	RoleID string
}

type QueryStats struct {
	Envelope
}

// QueryTicket returns the record needed to reconstruct a transcript header.
type QueryTicket struct {
	Envelope
	TicketID string
}

// QueryOwnerTickets lists the acting user's own tickets.
type QueryOwnerTickets struct {
	Envelope
}

type ListStaff struct {
	Envelope
}

func (CreateTicket) Kind() IntentKind      { return IntentCreateTicket }
func (ClaimTicket) Kind() IntentKind       { return IntentClaimTicket }
func (CloseTicket) Kind() IntentKind       { return IntentCloseTicket }
func (ReopenTicket) Kind() IntentKind      { return IntentReopenTicket }
func (AddParticipant) Kind() IntentKind    { return IntentAddParticipant }
func (RemoveParticipant) Kind() IntentKind { return IntentRemoveParticipant }
func (ConfigureSetting) Kind() IntentKind  { return IntentConfigureSetting }
func (AddStaff) Kind() IntentKind          { return IntentAddStaff }
func (RemoveStaff) Kind() IntentKind       { return IntentRemoveStaff }
func (AddStaffRole) Kind() IntentKind      { return IntentAddStaffRole }
func (RemoveStaffRole) Kind() IntentKind   { return IntentRemoveStaffRole }
func (QueryStats) Kind() IntentKind        { return IntentQueryStats }
func (QueryTicket) Kind() IntentKind       { return IntentQueryTicket }
func (QueryOwnerTickets) Kind() IntentKind { return IntentQueryOwnerTickets }
func (ListStaff) Kind() IntentKind         { return IntentListStaff }

// TicketScoped is implemented by intents that address a single ticket.
type TicketScoped interface {
	Intent
	Ticket() string
}

func (i ClaimTicket) Ticket() string       { return i.TicketID }
func (i CloseTicket) Ticket() string       { return i.TicketID }
func (i ReopenTicket) Ticket() string      { return i.TicketID }
func (i AddParticipant) Ticket() string    { return i.TicketID }
func (i RemoveParticipant) Ticket() string { return i.TicketID }
func (i QueryTicket) Ticket() string       { return i.TicketID }
