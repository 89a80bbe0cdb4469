package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"signupboard/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer messageWriter
}

// NewPublisher returns a Kafka-backed ActivityPublisher, or a no-op one when
// no brokers are configured.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) domain.ActivityPublisher {
	if len(brokers) == 0 {
		logger.Info("no kafka brokers configured, activity feed disabled")
		return noopPublisher{}
	}
	return &kafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish keys each message by event id so one event's activity stays ordered.
func (p *kafkaPublisher) Publish(ctx context.Context, a domain.Activity) error {
	const op = "activity.kafkaPublisher.Publish"

	msg, err := encode(a)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

func encode(a domain.Activity) (kafka.Message, error) {
	value, err := json.Marshal(a)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode activity: %w", err)
	}
	return kafka.Message{
		Key:   []byte(a.EventID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(a.Kind)},
		},
	}, nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, a domain.Activity) error { return nil }
func (noopPublisher) Close() error                                         { return nil }
