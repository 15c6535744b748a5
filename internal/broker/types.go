package broker

import (
	"context"

	"datasync/pkg/models"
)

type Publisher interface {
	PublishRunCompleted(ctx context.Context, event models.RunCompletedEvent) error
	Close() error
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishRunCompleted(context.Context, models.RunCompletedEvent) error {
	return nil
}

func (NopPublisher) Close() error {
	return nil
}
