package config

import (
	"errors"
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errs []error

	for _, validate := range []func(*Config) error{
		func(c *Config) error { return validateServer(c.Server) },
		func(c *Config) error { return validateMongoDB(c.Database.MongoDB) },
		func(c *Config) error { return validateSource(c.Database.Source) },
		func(c *Config) error { return validateRedis(c.Database.Redis) },
		func(c *Config) error { return validateBroker(c.Broker) },
		func(c *Config) error { return validateSync(c.Sync) },
		validateRunTimeout,
	} {
		if err := validate(cfg); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func validatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", port),
		}
	}
	return nil
}

func validateServer(cfg ServerConfig) error {
	if err := validatePort("server.port", cfg.Port); err != nil {
		return err
	}
	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{Field: "server.read_timeout_seconds", Message: "read timeout must be positive"}
	}
	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{Field: "server.write_timeout_seconds", Message: "write timeout must be positive"}
	}
	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if cfg.URI == "" {
		return &ValidationError{Field: "database.mongodb.uri", Message: "MongoDB URI is required"}
	}
	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}
	if cfg.Database == "" {
		return &ValidationError{Field: "database.mongodb.database", Message: "MongoDB database name is required"}
	}
	return nil
}

func validateSource(cfg SourceConfig) error {
	if cfg.Host == "" {
		return &ValidationError{Field: "database.source.host", Message: "source host is required"}
	}
	if err := validatePort("database.source.port", cfg.Port); err != nil {
		return err
	}
	if cfg.User == "" {
		return &ValidationError{Field: "database.source.user", Message: "source user is required"}
	}
	if cfg.DBName == "" {
		return &ValidationError{Field: "database.source.dbname", Message: "source database name is required"}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.source.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s", cfg.SSLMode),
		}
	}
	if cfg.MaxOpenConns < 0 || cfg.MaxIdleConns < 0 {
		return &ValidationError{Field: "database.source.max_open_conns", Message: "pool sizes must be non-negative"}
	}
	return nil
}

// Redis is optional; without it run locks are process-local.
func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" && cfg.Port == 0 {
		return nil
	}
	if cfg.Host == "" {
		return &ValidationError{Field: "database.redis.host", Message: "Redis host is required"}
	}
	return validatePort("database.redis.port", cfg.Port)
}

func validateBroker(cfg BrokerConfig) error {
	switch cfg.Type {
	case "":
		return nil
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return &ValidationError{Field: "broker.kafka.brokers", Message: "at least one Kafka broker is required"}
		}
		for i, b := range cfg.Kafka.Brokers {
			if b == "" {
				return &ValidationError{
					Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
					Message: "broker address cannot be empty",
				}
			}
		}
		if cfg.Kafka.RunEventsTopic == "" {
			return &ValidationError{Field: "broker.kafka.run_events_topic", Message: "run events topic is required"}
		}
		return nil
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka)", cfg.Type),
		}
	}
}

func validateSync(cfg SyncConfig) error {
	if cfg.DefaultPassword == "" {
		return &ValidationError{Field: "sync.default_password", Message: "default password is required"}
	}
	if cfg.ExecutionTimeout < 0 {
		return &ValidationError{Field: "sync.execution_timeout", Message: "execution timeout must be non-negative"}
	}
	if cfg.LockTTL <= 0 {
		return &ValidationError{Field: "sync.lock_ttl", Message: "lock TTL must be positive"}
	}
	return nil
}

// The HTTP trigger answers with the run result, so a run must fit in the
// server's write timeout.
func validateRunTimeout(cfg *Config) error {
	if cfg.Sync.ExecutionTimeout > cfg.Server.WriteTimeoutSeconds {
		return &ValidationError{
			Field: "sync.execution_timeout",
			Message: fmt.Sprintf("execution timeout %s exceeds server write timeout %s",
				cfg.Sync.ExecutionTimeout, cfg.Server.WriteTimeoutSeconds),
		}
	}
	return nil
}
