package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/resq-unified/flood-risk-service/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// Header keys set on every change message.
const (
	headerTable      = "table"
	headerChangeType = "change_type"
	headerOccurredAt = "occurred_at"
)

// Publisher produces change events to a Kafka topic.
type Publisher struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a Kafka producer for the change topic.
func NewPublisher(brokers []string, topic string, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, metrics: metrics, logger: logger}
}

// Publish serializes and writes events in a single WriteMessages call.
func (p *Publisher) Publish(ctx context.Context, events ...domain.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d change events: %w", len(msgs), err)
	}
	for i := range events {
		p.metrics.ChangeEventsPublished.WithLabelValues(events[i].Table).Inc()
	}
	p.logger.Debug("change events published", "count", len(events), "table", events[0].Table)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage wraps a ChangeEvent into a Kafka message keyed by table
// so that events for one table keep their order within a partition.
func serializeToMessage(event domain.ChangeEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize change event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Table),
		Value: data,
		Headers: []kafkago.Header{
			{Key: headerTable, Value: []byte(event.Table)},
			{Key: headerChangeType, Value: []byte(event.Type)},
			{Key: headerOccurredAt, Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
