package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SyncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of synchronization runs by final status (count)",
		},
		[]string{"collection", "status"},
	)

	SyncRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_run_duration_ms",
			Help:    "Duration of synchronization runs in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"collection", "status"},
	)

	SyncRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_total",
			Help: "Total number of source records processed by outcome (count)",
		},
		[]string{"collection", "outcome"},
	)

	SyncRecordErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_record_errors_total",
			Help: "Total number of failed records by error type (count)",
		},
		[]string{"collection", "type"},
	)

	SyncCountInconsistenciesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_count_inconsistencies_total",
			Help: "Runs whose final target count did not match initial count plus inserts (count)",
		},
		[]string{"collection"},
	)

	SyncFalsePositiveMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_false_positive_matches_total",
			Help: "Key lookups that returned a document whose key did not match (count)",
		},
		[]string{"collection"},
	)

	SyncRunsInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_runs_in_progress",
			Help: "Number of synchronization runs currently executing (count)",
		},
	)

	SourceQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_query_duration_ms",
			Help:    "Duration of source view queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

func RegisterSyncMetrics() {
	prometheus.MustRegister(SyncRunsTotal)
	prometheus.MustRegister(SyncRunDuration)
	prometheus.MustRegister(SyncRecordsTotal)
	prometheus.MustRegister(SyncRecordErrorsTotal)
	prometheus.MustRegister(SyncCountInconsistenciesTotal)
	prometheus.MustRegister(SyncFalsePositiveMatchesTotal)
	prometheus.MustRegister(SyncRunsInProgress)
	prometheus.MustRegister(SourceQueryDuration)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterManagementMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
}

func ObserveRun(collection, status string, duration time.Duration) {
	SyncRunsTotal.WithLabelValues(collection, status).Inc()
	SyncRunDuration.WithLabelValues(collection, status).Observe(float64(duration.Milliseconds()))
}

func AddRecords(collection string, inserted, updated, failed int) {
	SyncRecordsTotal.WithLabelValues(collection, "inserted").Add(float64(inserted))
	SyncRecordsTotal.WithLabelValues(collection, "updated").Add(float64(updated))
	SyncRecordsTotal.WithLabelValues(collection, "failed").Add(float64(failed))
}

func IncRecordError(collection, errorType string) {
	SyncRecordErrorsTotal.WithLabelValues(collection, errorType).Inc()
}

func IncCountInconsistency(collection string) {
	SyncCountInconsistenciesTotal.WithLabelValues(collection).Inc()
}

func IncFalsePositiveMatch(collection string) {
	SyncFalsePositiveMatchesTotal.WithLabelValues(collection).Inc()
}

func ObserveSourceQuery(status string, duration time.Duration) {
	SourceQueryDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func ObserveDatabaseQuery(service, database, operation, status string, duration time.Duration) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
