// internal/events/kafka.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes donation events keyed by checkout id, so every
// event for one payment lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	l := logger.With(zap.String("component", "kafka_publisher"))
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Logger:                 zap.NewStdLog(l.With(zap.String("kafka_component", "writer"))),
		ErrorLogger:            zap.NewStdLog(l.With(zap.String("kafka_component", "writer_error"))),
	}

	l.Info("kafka publisher initialized", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return &KafkaPublisher{writer: writer, topic: topic, logger: l}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event DonationEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.CheckoutRequestID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("type", string(event.Type)),
			zap.String("checkout_request_id", event.CheckoutRequestID),
			zap.Error(err))
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	p.logger.Debug("published event",
		zap.String("type", string(event.Type)),
		zap.String("checkout_request_id", event.CheckoutRequestID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	p.logger.Info("kafka publisher closed")
	return nil
}
