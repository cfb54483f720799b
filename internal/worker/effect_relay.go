package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-tickets/internal/events"
	"github.com/spec-kit/guild-tickets/internal/observability"
)

// EffectRelay forwards published events, with the effects they carry, to the
// gateway sink.
type EffectRelay struct {
	sink    events.Sink
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewEffectRelay creates the relay.
func NewEffectRelay(sink events.Sink, metrics *observability.Metrics, logger *zap.Logger) *EffectRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EffectRelay{sink: sink, metrics: metrics, logger: logger}
}

// StartEffectRelay registers the relay on every event type.
func StartEffectRelay(dispatcher events.Dispatcher, relay *EffectRelay) {
	if dispatcher == nil || relay == nil {
		return
	}
	events.SubscribeAll(dispatcher, relay.handle)
}

// handle never returns the delivery error: the state change already
// happened and the gateway reconciles missing effects on its own.
func (r *EffectRelay) handle(ctx context.Context, event events.Event) error {
	err := r.sink.Deliver(ctx, event)
	for _, effect := range event.Effects {
		r.metrics.RecordEffect(string(effect.Type), err == nil)
	}
	if err != nil {
		r.logger.Error("effect delivery failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("workspace_id", event.WorkspaceID),
			zap.String("ticket_id", event.TicketID),
			zap.Int("effects", len(event.Effects)),
			zap.Error(err),
		)
		return nil
	}
	r.logger.Debug("effects delivered",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Int("effects", len(event.Effects)),
	)
	return nil
}
