package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"datasync/internal/config"
	"datasync/internal/constants"
	"datasync/internal/logger"
	"datasync/pkg/metrics"
	"datasync/pkg/models"
	"datasync/pkg/tracing"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger logger.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, log logger.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, topic: cfg.RunEventsTopic, logger: log}
}

// PublishRunCompleted writes the event keyed by integration id so runs of the
// same integration stay ordered within a partition.
func (p *KafkaPublisher) PublishRunCompleted(ctx context.Context, event models.RunCompletedEvent) error {
	if event.EventType == "" {
		event.EventType = models.EventTypeRunCompleted
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal run event: %w", err)
	}

	headers := tracing.InjectTraceContext(ctx, []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
	})

	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   p.topic,
		Key:     []byte(event.IntegrationID),
		Value:   body,
		Headers: headers,
		Time:    time.Now(),
	})
	metrics.ObserveKafkaWriteDuration(constants.ServiceName, p.topic, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(constants.ServiceName, p.topic)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
