package service

import "github.com/spec-kit/guild-tickets/internal/domain"

// ComputeStats derives workspace counts. Reopened tickets count as open;
// Claimed counts every ticket with a claimer, closed ones included.
func ComputeStats(cfg *domain.WorkspaceConfig) domain.Stats {
	stats := domain.Stats{
		StaffCount:     len(cfg.StaffMembers),
		StaffRoleCount: len(cfg.StaffRoles),
	}
	for _, t := range cfg.Tickets {
		if t == nil {
			continue
		}
		stats.Total++
		switch t.Status {
		case domain.TicketStatusOpen:
			stats.Open++
		case domain.TicketStatusReopened:
			stats.Open++
			stats.Reopened++
		case domain.TicketStatusClosed:
			stats.Closed++
		}
		if t.IsClaimed() {
			stats.Claimed++
		}
	}
	return stats
}
