package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-tickets/internal/config"
)

// Sink delivers events, and the effects they carry, to the gateway.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
	Close() error
}

// NewSink picks Kafka when brokers are configured and logging otherwise.
func NewSink(cfg config.KafkaConfig, logger *zap.Logger) Sink {
	if len(cfg.Brokers) == 0 {
		logger.Info("kafka brokers not configured; effects are logged only")
		return NewLogSink(logger)
	}
	logger.Info("kafka effect sink enabled",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.EffectsTopic),
	)
	return NewKafkaSink(cfg.Brokers, cfg.EffectsTopic)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes one message per event. Messages are keyed by
// workspace so a tenant's effects stay ordered within a partition.
type KafkaSink struct {
	w       messageWriter
	timeout time.Duration
}

// NewKafkaSink builds a writer for topic. Writers are safe for concurrent use.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	if topic == "" {
		topic = "tickets.effects"
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaSink{w: w, timeout: 2 * time.Second}
}

func (s *KafkaSink) Deliver(ctx context.Context, event Event) error {
	msg, err := encodeMessage(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.w.WriteMessages(ctx, msg)
}

func (s *KafkaSink) Close() error {
	return s.w.Close()
}

func encodeMessage(event Event) (kafka.Message, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	return kafka.Message{
		Key:   []byte(event.WorkspaceID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
		Time: event.Timestamp,
	}, nil
}

// LogSink writes events to the log. Used when no broker is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a log-only sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(_ context.Context, event Event) error {
	for _, effect := range event.Effects {
		s.logger.Info("effect requested",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("workspace_id", event.WorkspaceID),
			zap.String("ticket_id", event.TicketID),
			zap.String("effect", string(effect.Type)),
			zap.Any("payload", effect.Payload),
		)
	}
	return nil
}

func (s *LogSink) Close() error { return nil }
