package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes committed changes to one topic, keyed by business
// address so every event of a business lands on the same partition in
// commit order.
type Publisher struct {
	w     messageWriter
	topic string
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}, topic)
}

func newPublisher(w messageWriter, topic string) *Publisher {
	return &Publisher{w: w, topic: topic}
}

func (p *Publisher) Publish(ctx context.Context, eventType, aggregateID string, data any) error {
	ev, err := NewEvent(eventType, aggregateID, data)
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(aggregateID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "source", Value: []byte(source)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", eventType, p.topic, err)
	}
	log.Debug().Str("topic", p.topic).Str("event_type", eventType).Str("aggregate_id", aggregateID).Msg("event published")
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }
