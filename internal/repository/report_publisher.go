package repository

import (
	"context"

	"IndiCache/internal/domain/models"
	pkgkafka "IndiCache/pkg/kafka"
)

// KafkaReportPublisher emits finished run reports to a Kafka topic for
// downstream dashboards. The run itself never depends on the publish
// succeeding.
type KafkaReportPublisher struct {
	producer *pkgkafka.Producer
}

// NewKafkaReportPublisher wraps an established producer.
func NewKafkaReportPublisher(producer *pkgkafka.Producer) *KafkaReportPublisher {
	return &KafkaReportPublisher{producer: producer}
}

// PublishRunReport sends one report keyed by its start timestamp.
func (p *KafkaReportPublisher) PublishRunReport(ctx context.Context, report *models.RunReport) error {
	key := []byte(report.StartedAt.UTC().Format("2006-01-02T15:04:05Z"))
	return p.producer.Publish(ctx, key, report)
}

// Close flushes and releases the producer.
func (p *KafkaReportPublisher) Close() error { return p.producer.Close() }

// NoopReportPublisher drops reports; used when no broker is configured.
type NoopReportPublisher struct{}

func (NoopReportPublisher) PublishRunReport(context.Context, *models.RunReport) error { return nil }
func (NoopReportPublisher) Close() error                                              { return nil }
