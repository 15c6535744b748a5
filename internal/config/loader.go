package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"datasync/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetConfigFile(configFile)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(v, &cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", "15s")
	v.SetDefault("server.write_timeout_seconds", constants.DefaultExecutionTimeout+time.Minute)
	v.SetDefault("database.mongodb.database", constants.DefaultMongoDBName)
	v.SetDefault("database.source.sslmode", "disable")
	v.SetDefault("database.source.max_open_conns", 5)
	v.SetDefault("database.source.max_idle_conns", 2)
	v.SetDefault("database.source.conn_max_lifetime", "30m")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("sync.default_password", constants.DefaultUserPassword)
	v.SetDefault("sync.admin_role", constants.DefaultAdminRole)
	v.SetDefault("sync.execution_timeout", constants.DefaultExecutionTimeout)
	v.SetDefault("sync.lock_ttl", constants.DefaultLockTTL)
}

func bindEnvVariables(v *viper.Viper) {
	bindings := map[string]string{
		"database.mongodb.uri":      "DATABASE_MONGODB_URI",
		"database.mongodb.database": "DATABASE_MONGODB_DATABASE",

		"database.source.host":     "DATABASE_SOURCE_HOST",
		"database.source.port":     "DATABASE_SOURCE_PORT",
		"database.source.user":     "DATABASE_SOURCE_USER",
		"database.source.password": "DATABASE_SOURCE_PASSWORD",
		"database.source.dbname":   "DATABASE_SOURCE_DBNAME",
		"database.source.sslmode":  "DATABASE_SOURCE_SSLMODE",

		"database.redis.host":     "DATABASE_REDIS_HOST",
		"database.redis.port":     "DATABASE_REDIS_PORT",
		"database.redis.password": "DATABASE_REDIS_PASSWORD",

		"broker.kafka.run_events_topic": "BROKER_KAFKA_RUN_EVENTS_TOPIC",

		"server.port":    "SERVER_PORT",
		"logging.level":  "LOGGING_LEVEL",
		"logging.format": "LOGGING_FORMAT",

		"sync.default_password":  "SYNC_DEFAULT_PASSWORD",
		"sync.execution_timeout": "SYNC_EXECUTION_TIMEOUT",

		"tracing.enabled":       "TRACING_ENABLED",
		"tracing.otlp.endpoint": "TRACING_OTLP_ENDPOINT",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}

func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	brokersEnv := v.GetString("BROKER_KAFKA_BROKERS")
	if brokersEnv == "" {
		return
	}
	brokers := strings.Split(brokersEnv, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	if brokers[0] != "" {
		cfg.Broker.Kafka.Brokers = brokers
	}
}
