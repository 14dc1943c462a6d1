package repository

import (
	"context"

	"CryptoVol/internal/domain/models"
	domrepo "CryptoVol/internal/domain/repository"
	pkgkafka "CryptoVol/pkg/kafka"
)

// KafkaRunPublisher announces finished training runs on a topic keyed by run id.
type KafkaRunPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaRunPublisher(producer *pkgkafka.Producer, topic string) domrepo.RunPublisher {
	return &KafkaRunPublisher{producer: producer, topic: topic}
}

func (p *KafkaRunPublisher) PublishRun(ctx context.Context, report models.TrainingReport) error {
	return p.producer.Publish(ctx, p.topic, []byte(report.RunID), report)
}

func (p *KafkaRunPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopRunPublisher is used when no broker is configured.
type NopRunPublisher struct{}

func (NopRunPublisher) PublishRun(context.Context, models.TrainingReport) error { return nil }

func (NopRunPublisher) Close() error { return nil }
