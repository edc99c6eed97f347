package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Publisher publishes lifecycle notifications to Kafka/Redpanda.
type Publisher struct {
	client *kgo.Client
	topic  string
	log    hclog.Logger
}

// PublisherConfig holds configuration for the publisher.
type PublisherConfig struct {
	Brokers []string
	Topic   string
}

// NewPublisher creates a new notification publisher.
func NewPublisher(cfg PublisherConfig, log hclog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if log == nil {
		log = hclog.NewNullLogger()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),

		// Wait for all in-sync replicas; idempotent production is
		// enabled by default with AllISRAcks.
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.GzipCompression()),

		kgo.ProducerLinger(10*time.Millisecond),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &Publisher{
		client: client,
		topic:  cfg.Topic,
		log:    log.Named("notifications"),
	}, nil
}

// Publish implements Notifier. Transient produce failures are retried
// with bounded exponential backoff; a message that still cannot be
// produced is logged and dropped, never blocking the lifecycle
// operation that raised it.
func (p *Publisher) Publish(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(msg.PartitionKey()),
		Value: payload,
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(), 5), ctx)

	err = backoff.Retry(func() error {
		return p.client.ProduceSync(ctx, record).FirstErr()
	}, policy)
	if err != nil {
		p.log.Error("dropping notification after retries",
			"event", msg.Type, "document_id", msg.DocumentID, "error", err)
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	p.log.Debug("notification published", "event", msg.Type, "document_id", msg.DocumentID)
	return nil
}

// Close closes the publisher.
func (p *Publisher) Close() {
	p.client.Close()
}
