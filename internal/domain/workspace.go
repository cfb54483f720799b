package domain

import (
	"sort"
	"time"
)

// Settings holds per-workspace behavior knobs.
type Settings struct {
	MaxTicketsPerUser   int    `json:"maxTicketsPerUser" yaml:"max_tickets_per_user"`
	TicketCategoryName  string `json:"ticketCategoryName" yaml:"ticket_category_name"`
	LogsChannelName     string `json:"logsChannelName" yaml:"logs_channel_name"`
	TicketPrefix        string `json:"ticketPrefix" yaml:"ticket_prefix"`
	StaffRoleName       string `json:"staffRoleName" yaml:"staff_role_name"`
	AutoCreateStaffRole bool   `json:"autoCreateStaffRole" yaml:"auto_create_staff_role"`
}

// DefaultSettings returns the built-in settings for a fresh workspace.
func DefaultSettings() Settings {
	return Settings{
		MaxTicketsPerUser:   3,
		TicketCategoryName:  "🎫・Tickets",
		LogsChannelName:     "ticket-logs",
		TicketPrefix:        "ticket-",
		StaffRoleName:       "Support Staff",
		AutoCreateStaffRole: false,
	}
}

// WorkspaceConfig is the single document owned by a tenant.
type WorkspaceConfig struct {
	WorkspaceID      string             `json:"workspaceId"`
	Tickets          map[string]*Ticket `json:"tickets"`
	StaffMembers     []string           `json:"staffMembers"`
	StaffRoles       []string           `json:"staffRoles"`
	NextTicketNumber int                `json:"nextTicketNumber"`
	Settings         Settings           `json:"settings"`
	CreatedAt        time.Time          `json:"createdAt"`

	// Version is the store's optimistic stamp; it is not part of the document body.
	Version int64 `json:"-"`
}

// NewWorkspaceConfig materializes the default document for a workspace.
func NewWorkspaceConfig(workspaceID string, settings Settings, now time.Time) *WorkspaceConfig {
	return &WorkspaceConfig{
		WorkspaceID:      workspaceID,
		Tickets:          map[string]*Ticket{},
		StaffMembers:     []string{},
		StaffRoles:       []string{},
		NextTicketNumber: 1,
		Settings:         settings,
		CreatedAt:        now,
	}
}

// Normalize repairs nil collections after decoding.
func (w *WorkspaceConfig) Normalize() {
	if w.Tickets == nil {
		w.Tickets = map[string]*Ticket{}
	}
	if w.StaffMembers == nil {
		w.StaffMembers = []string{}
	}
	if w.StaffRoles == nil {
		w.StaffRoles = []string{}
	}
	if w.NextTicketNumber < 1 {
		w.NextTicketNumber = 1
	}
}

// HasStaffMember reports explicit staff membership.
func (w *WorkspaceConfig) HasStaffMember(actorID string) bool {
	return contains(w.StaffMembers, actorID)
}

// HasStaffRole reports whether roleID is configured as a staff role.
func (w *WorkspaceConfig) HasStaffRole(roleID string) bool {
	return contains(w.StaffRoles, roleID)
}

// AddStaffMember inserts actorID, returning false if already present.
func (w *WorkspaceConfig) AddStaffMember(actorID string) bool {
	var added bool
	w.StaffMembers, added = insertSorted(w.StaffMembers, actorID)
	return added
}

// RemoveStaffMember deletes actorID, returning false if it was absent.
func (w *WorkspaceConfig) RemoveStaffMember(actorID string) bool {
	var removed bool
	w.StaffMembers, removed = remove(w.StaffMembers, actorID)
	return removed
}

// AddStaffRole inserts roleID, returning false if already present.
func (w *WorkspaceConfig) AddStaffRole(roleID string) bool {
	var added bool
	w.StaffRoles, added = insertSorted(w.StaffRoles, roleID)
	return added
}

// RemoveStaffRole deletes roleID, returning false if it was absent.
func (w *WorkspaceConfig) RemoveStaffRole(roleID string) bool {
	var removed bool
	w.StaffRoles, removed = remove(w.StaffRoles, roleID)
	return removed
}

// SortedTickets returns the tickets ordered by id.
func (w *WorkspaceConfig) SortedTickets() []*Ticket {
	out := make([]*Ticket, 0, len(w.Tickets))
	for _, t := range w.Tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return TicketIDLess(out[i].ID, out[j].ID) })
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func insertSorted(list []string, v string) ([]string, bool) {
	if contains(list, v) {
		return list, false
	}
	list = append(list, v)
	sort.Strings(list)
	return list, true
}

func remove(list []string, v string) ([]string, bool) {
	for i, item := range list {
		if item == v {
			return append(list[:i:i], list[i+1:]...), true
		}
	}
	return list, false
}
