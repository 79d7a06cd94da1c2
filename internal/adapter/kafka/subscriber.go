package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/resq-unified/flood-risk-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Subscriber reads change events from the change topic. Subscriptions read
// the table's partition directly from the newest offset without a consumer
// group, so they leave no state on the brokers and only see events produced
// after they subscribed.
type Subscriber struct {
	brokers []string
	topic   string
	logger  *slog.Logger
}

// NewSubscriber creates a change-feed subscriber.
func NewSubscriber(brokers []string, topic string, logger *slog.Logger) *Subscriber {
	return &Subscriber{brokers: brokers, topic: topic, logger: logger}
}

// Subscribe streams events for table until ctx is cancelled. The returned
// channel is closed when the subscription ends.
func (s *Subscriber) Subscribe(ctx context.Context, table string) (<-chan domain.ChangeEvent, error) {
	if table == "" {
		return nil, errors.New("subscribe: table is required")
	}
	partitions, err := s.partitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", table, err)
	}
	r := kafkago.NewReader(readerConfig(s.brokers, s.topic, partitionFor(table, partitions)))
	if err := r.SetOffset(kafkago.LastOffset); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("subscribe %s: %w", table, err)
	}

	out := make(chan domain.ChangeEvent)
	go s.consume(ctx, r, table, out)
	return out, nil
}

// partitions returns the sorted partition IDs of the change topic from the
// first broker that answers.
func (s *Subscriber) partitions(ctx context.Context) ([]int, error) {
	lastErr := errors.New("no brokers configured")
	for _, broker := range s.brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		parts, err := conn.ReadPartitions(s.topic)
		_ = conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		ids := make([]int, 0, len(parts))
		for _, p := range parts {
			ids = append(ids, p.ID)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("topic %s has no partitions", s.topic)
		}
		slices.Sort(ids)
		return ids, nil
	}
	return nil, fmt.Errorf("read partitions of %s: %w", s.topic, lastErr)
}

// partitionFor picks the partition the publisher's hash balancer assigns to
// messages keyed by table.
func partitionFor(table string, partitions []int) int {
	return (&kafkago.Hash{}).Balance(kafkago.Message{Key: []byte(table)}, partitions...)
}

func readerConfig(brokers []string, topic string, partition int) kafkago.ReaderConfig {
	return kafkago.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: partition,
		MaxWait:   500 * time.Millisecond,
	}
}

func (s *Subscriber) consume(ctx context.Context, r *kafkago.Reader, table string, out chan<- domain.ChangeEvent) {
	defer close(out)
	defer func() {
		if err := r.Close(); err != nil {
			s.logger.Warn("kafka reader close error", "error", err, "table", table)
		}
	}()

	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			s.logger.Error("read change event failed", "error", err, "table", table)
			if !sleepWithContext(ctx, time.Second) {
				return
			}
			continue
		}

		if headerValue(msg, headerTable) != table {
			continue
		}
		event, err := mapMessageToChangeEvent(msg)
		if err != nil {
			s.logger.Warn("skipping malformed change event", "error", err,
				"partition", msg.Partition, "offset", msg.Offset)
			continue
		}

		select {
		case out <- event:
		case <-ctx.Done():
			return
		}
	}
}

func mapMessageToChangeEvent(msg kafkago.Message) (domain.ChangeEvent, error) {
	var event domain.ChangeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("decode change event: %w", err)
	}
	if event.Table == "" {
		event.Table = headerValue(msg, headerTable)
	}
	return event, nil
}

func headerValue(msg kafkago.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
