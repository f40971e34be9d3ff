package repository

import (
	"context"
	"fmt"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	pkgkafka "SignalForge/pkg/kafka"
)

// KafkaSignalPublisher pushes emitted signals and decisions to Kafka, keyed
// by instrument so every key's output lands on one partition in order.
type KafkaSignalPublisher struct {
	producer      *pkgkafka.Producer
	signalTopic   string
	decisionTopic string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, signalTopic, decisionTopic string) domrepo.SignalPublisher {
	return &KafkaSignalPublisher{
		producer:      producer,
		signalTopic:   signalTopic,
		decisionTopic: decisionTopic,
	}
}

func (p *KafkaSignalPublisher) PublishSignal(ctx context.Context, key domrepo.Key, s *models.BarSignal) error {
	if s.WarmingUp {
		// warm-up bars carry NaN fields and cannot be JSON-encoded
		return fmt.Errorf("warm-up signal not publishable: %w", models.ErrInvalidValue)
	}
	return p.producer.Publish(ctx, p.signalTopic, []byte(key.String()), s)
}

func (p *KafkaSignalPublisher) PublishDecision(ctx context.Context, key domrepo.Key, d *models.Decision) error {
	return p.producer.Publish(ctx, p.decisionTopic, []byte(key.String()), d)
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
