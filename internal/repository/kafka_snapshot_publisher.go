package repository

import (
	"context"
	"fmt"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	pkgkafka "MarketPulse/pkg/kafka"
)

// KafkaSnapshotPublisher pushes consolidated records to Kafka, one
// message per symbol keyed for per-symbol ordering.
type KafkaSnapshotPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSnapshotPublisher creates a Kafka publisher.
func NewKafkaSnapshotPublisher(producer *pkgkafka.Producer, topic string) *KafkaSnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic}
}

func (p *KafkaSnapshotPublisher) PublishSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil || len(snap.Records) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(snap.Records))
	for i := range snap.Records {
		rec := snap.Records[i]
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(rec.Symbol),
			Value: rec,
		})
	}
	if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
		return fmt.Errorf("publish records: %w", err)
	}
	return nil
}

func (p *KafkaSnapshotPublisher) Close() error {
	return p.producer.Close()
}

var _ domrepo.SnapshotPublisher = (*KafkaSnapshotPublisher)(nil)
