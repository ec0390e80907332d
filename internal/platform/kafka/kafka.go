// Package kafka ships security events to a Kafka topic with franz-go.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"wishguard/internal/platform/config"
	audit "wishguard/pkg/platform/audit"
)

// Producer writes security event batches to a single topic.
type Producer struct {
	client *kgo.Client
	topic  string
}

// New connects to the brokers and makes sure the topic exists.
// Returns nil, nil when no brokers are configured.
func New(ctx context.Context, cfg config.KafkaConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.SecurityEventsTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(50*time.Millisecond),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping kafka: %w", err)
	}
	p := &Producer{client: client, topic: cfg.SecurityEventsTopic}
	if err := p.EnsureTopic(ctx, 3, 1); err != nil {
		client.Close()
		return nil, err
	}
	return p, nil
}

// EnsureTopic creates the topic if it does not exist yet.
func (p *Producer) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// WriteBatch produces one record per event, keyed by client IP so events from
// one source stay ordered within a partition.
func (p *Producer) WriteBatch(ctx context.Context, events []audit.SecurityEvent) error {
	records := make([]*kgo.Record, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal security event: %w", err)
		}
		records = append(records, &kgo.Record{
			Topic:     p.topic,
			Key:       []byte(ev.IP),
			Value:     value,
			Timestamp: ev.Timestamp,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(ev.Type)},
				{Key: "severity", Value: []byte(ev.Severity)},
			},
		})
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce security events: %w", err)
	}
	return nil
}

func (p *Producer) Close() {
	p.client.Close()
}
