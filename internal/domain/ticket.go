package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusClaimed  TicketStatus = "claimed"
	TicketStatusClosed   TicketStatus = "closed"
	TicketStatusReopened TicketStatus = "reopened"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusClaimed, TicketStatusClosed, TicketStatusReopened:
		return true
	}
	return false
}

// Active reports whether the status counts against the owner's quota.
func (s TicketStatus) Active() bool {
	return s == TicketStatusOpen || s == TicketStatusClaimed || s == TicketStatusReopened
}

// Claimable reports whether a ticket in this status may be claimed.
// Reopened tickets behave exactly like open ones.
func (s TicketStatus) Claimable() bool {
	return s == TicketStatusOpen || s == TicketStatusReopened
}

const (
	DefaultTicketCategory = "general"
	DefaultTicketReason   = "No reason provided"
)

// TicketIDWidth is the zero-padded width of ticket identifiers.
const TicketIDWidth = 4

// FormatTicketID renders a counter value as a ticket identifier.
func FormatTicketID(n int) string {
	return fmt.Sprintf("%0*d", TicketIDWidth, n)
}

// TicketIDLess orders ticket ids numerically. Ids are zero-padded to four
// digits and widen past 9999, so a shorter id is always the smaller one.
func TicketIDLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// Ticket is a single support request inside a workspace.
type Ticket struct {
	ID              string       `json:"id"`
	WorkspaceID     string       `json:"workspaceId"`
	ConversationRef string       `json:"conversationRef"`
	OwnerID         string       `json:"ownerId"`
	Category        string       `json:"category"`
	Reason          string       `json:"reason"`
	Status          TicketStatus `json:"status"`
	ClaimedBy       *string      `json:"claimedBy"`
	ClaimedAt       *time.Time   `json:"claimedAt"`
	CreatedAt       time.Time    `json:"createdAt"`
	ClosedAt        *time.Time   `json:"closedAt"`
	ClosedBy        *string      `json:"closedBy"`
	CloseReason     *string      `json:"closeReason"`
	ReopenedAt      *time.Time   `json:"reopenedAt"`
}

// IsClaimed reports whether a staff member currently holds the ticket.
func (t *Ticket) IsClaimed() bool {
	return t.ClaimedBy != nil && *t.ClaimedBy != ""
}

// Clone returns a deep copy so callers never share pointers with a stored document.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.ClaimedBy = cloneString(t.ClaimedBy)
	c.ClaimedAt = cloneTime(t.ClaimedAt)
	c.ClosedAt = cloneTime(t.ClosedAt)
	c.ClosedBy = cloneString(t.ClosedBy)
	c.CloseReason = cloneString(t.CloseReason)
	c.ReopenedAt = cloneTime(t.ReopenedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
