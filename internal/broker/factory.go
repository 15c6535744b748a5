package broker

import (
	"fmt"

	"datasync/internal/config"
	"datasync/internal/logger"
)

func NewPublisher(cfg config.BrokerConfig, log logger.Logger) (Publisher, error) {
	switch cfg.Type {
	case "":
		log.Infow("No broker configured, run events will not be published")
		return NopPublisher{}, nil
	case "kafka":
		return NewKafkaPublisher(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
