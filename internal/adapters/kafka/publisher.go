package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/pkg/observability"
	"go.uber.org/zap"
)

// DefaultTopic receives every payment lifecycle event
const DefaultTopic = "payments.events"

const eventTypeHeader = "event-type"

// ProducerConfig holds broker connection settings
type ProducerConfig struct {
	ClientID string
	Brokers  []string
	Timeout  time.Duration
}

// NewSyncProducer dials the brokers with acks from all in-sync replicas
func NewSyncProducer(cfg ProducerConfig) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.ClientID = cfg.ClientID
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	if cfg.Timeout > 0 {
		config.Producer.Timeout = cfg.Timeout
		config.Net.DialTimeout = cfg.Timeout
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

// Publisher writes payment events to Kafka, keyed by transaction reference
// so every event for one payment lands on the same partition in order
type Publisher struct {
	producer sarama.SyncProducer
	logger   *zap.Logger
	topic    string
}

// NewPublisher wraps a sync producer. An empty topic uses DefaultTopic.
func NewPublisher(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

// Publish sends one event and waits for the broker ack
func (p *Publisher) Publish(ctx context.Context, event domain.PaymentEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		observability.RecordEventPublished(string(event.Type), "error")
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.Reference),
		Value:     sarama.ByteEncoder(data),
		Timestamp: event.OccurredAt,
		Headers: []sarama.RecordHeader{
			{Key: []byte(eventTypeHeader), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		observability.RecordEventPublished(string(event.Type), "error")
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}

	observability.RecordEventPublished(string(event.Type), "success")
	p.logger.Debug("Published payment event",
		zap.String("type", string(event.Type)),
		zap.String("reference", event.Reference),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// Close flushes and closes the underlying producer
func (p *Publisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher discards events. Used when no brokers are configured.
type NoopPublisher struct {
	logger *zap.Logger
}

// NewNoopPublisher creates a publisher that only logs at debug level
func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

// Publish logs and drops the event
func (n *NoopPublisher) Publish(_ context.Context, event domain.PaymentEvent) error {
	n.logger.Debug("Event publishing disabled, dropping event",
		zap.String("type", string(event.Type)),
		zap.String("reference", event.Reference),
	)
	return nil
}
