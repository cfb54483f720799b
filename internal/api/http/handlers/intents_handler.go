package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guild-tickets/internal/api/dto"
	"github.com/spec-kit/guild-tickets/internal/service"
)

// IntentsHandler accepts normalized intents from the gateway.
type IntentsHandler struct {
	dispatcher *service.Dispatcher
}

// NewIntentsHandler constructs handler.
func NewIntentsHandler(dispatcher *service.Dispatcher) *IntentsHandler {
	return &IntentsHandler{dispatcher: dispatcher}
}

// Submit POST /v1/intents.
func (h *IntentsHandler) Submit(c *fiber.Ctx) error {
	intent, err := dto.DecodeIntent(c.Body())
	if err != nil {
		return err
	}
	outcome, err := h.dispatcher.Dispatch(c.UserContext(), intent)
	if err != nil {
		return err
	}
	return c.JSON(dto.IntentResponse{Data: outcome})
}
