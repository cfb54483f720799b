package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guild-tickets/internal/repository"
	"github.com/spec-kit/guild-tickets/internal/service"
)

// WorkspacesHandler serves read-only dashboard views. Callers are
// authenticated API clients, not platform actors, so no intent permission
// applies.
type WorkspacesHandler struct {
	workspaces repository.WorkspaceRepository
	lifecycle  *service.TicketLifecycle
}

// NewWorkspacesHandler constructs handler.
func NewWorkspacesHandler(workspaces repository.WorkspaceRepository, lifecycle *service.TicketLifecycle) *WorkspacesHandler {
	return &WorkspacesHandler{workspaces: workspaces, lifecycle: lifecycle}
}

// Stats GET /v1/workspaces/:id/stats.
func (h *WorkspacesHandler) Stats(c *fiber.Ctx) error {
	cfg, err := h.workspaces.Load(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.ComputeStats(cfg)})
}

// Ticket GET /v1/workspaces/:id/tickets/:ticketId.
func (h *WorkspacesHandler) Ticket(c *fiber.Ctx) error {
	ticket, err := h.lifecycle.LookupTicket(c.UserContext(), c.Params("id"), c.Params("ticketId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticket})
}
