package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guild-tickets/internal/observability"
)

// MetricsHandler serves the in-process counters.
type MetricsHandler struct {
	metrics *observability.Metrics
}

// NewMetricsHandler returns a new handler instance.
func NewMetricsHandler(metrics *observability.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Snapshot returns request, error, intent and effect counters. Intent
// latency is the accumulated time per kind in milliseconds.
func (h *MetricsHandler) Snapshot(c *fiber.Ctx) error {
	snap := h.metrics.Snapshot()
	latency := make(map[string]int64, len(snap.IntentLatency))
	for kind, d := range snap.IntentLatency {
		latency[kind] = d.Milliseconds()
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"requests":        snap.Requests,
			"errors":          snap.Errors,
			"intents":         snap.Intents,
			"intentLatencyMs": latency,
			"effects":         snap.Effects,
		},
	})
}
