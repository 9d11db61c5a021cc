package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/blackmichael/novelle/internal/domain"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// InteractionEvent is the record published for every like or save toggle.
type InteractionEvent struct {
	QuoteID     string    `json:"quoteId"`
	UserID      string    `json:"userId"`
	Kind        string    `json:"kind"`
	Action      string    `json:"action"`
	LikesCount  int64     `json:"likesCount"`
	SavesCount  int64     `json:"savesCount"`
	LikedByUser bool      `json:"likedByUser"`
	SavedByUser bool      `json:"savedByUser"`
	At          time.Time `json:"at"`
}

// Publisher writes interaction events to a Kafka topic, keyed by quote so
// the events of one quote stay ordered within a partition.
type Publisher struct {
	writer messageWriter
}

// NewPublisher creates an asynchronous publisher for topic. Delivery errors
// are logged from the writer's completion callback.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Warn("failed to publish interaction events", "topic", topic, "count", len(msgs), "error", err)
			}
		},
	}
	return &Publisher{writer: w}
}

// Notify publishes event. It implements domain.InteractionNotifier.
func (p *Publisher) Notify(ctx context.Context, event domain.InteractionEvent) error {
	value, err := encodeEvent(event)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Target.String()),
		Value: value,
		Time:  event.At,
	})
	if err != nil {
		return fmt.Errorf("publish %s %s for quote %s: %w", event.Kind, event.Action, event.Target, err)
	}
	return nil
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func encodeEvent(event domain.InteractionEvent) ([]byte, error) {
	b, err := json.Marshal(InteractionEvent{
		QuoteID:     event.Target.String(),
		UserID:      event.Viewer,
		Kind:        string(event.Kind),
		Action:      string(event.Action),
		LikesCount:  event.Stats.LikesCount,
		SavesCount:  event.Stats.SavesCount,
		LikedByUser: event.Stats.LikedByUser,
		SavedByUser: event.Stats.SavedByUser,
		At:          event.At.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode interaction event: %w", err)
	}
	return b, nil
}
