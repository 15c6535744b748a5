package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultMongoDBName = "datasync"

	IntegrationsCollection = "integrations"
)

const (
	ShutdownTimeout = 5 * time.Second
	HealthTimeout   = 5 * time.Second
)

const (
	DefaultExecutionTimeout = 10 * time.Minute
	DefaultLockTTL          = 15 * time.Minute
	LockKeyPrefix           = "datasync:run-lock:"
)

const (
	DefaultUserPassword = "changeme"
	DefaultAdminRole    = "admin"
)

const (
	MaxErrorMessageLen = 150
	MaxErrorExamples   = 3
	MaxExampleLen      = 200
)

const (
	ServiceName = "sync-service"
)
