package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"datasync/internal/config"
	"datasync/internal/logger"
	"datasync/pkg/retry"
)

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
	Policy retry.Policy
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
		Policy: retry.DefaultPolicy(),
	}
}

func (dc *DatabaseConnector) logRetry(name string) func(int, error, time.Duration) {
	return func(attempt int, err error, next time.Duration) {
		dc.Logger.Warnw("Connection attempt failed, retrying",
			"database", name,
			"attempt", attempt,
			"error", err,
			"next_retry_in", next,
		)
	}
}

// InitRedis returns nil, nil when no redis host is configured; the run lock
// then falls back to process memory.
func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	if dc.Config.Database.Redis.Host == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", dc.Config.Database.Redis.Host, dc.Config.Database.Redis.Port),
		Password: dc.Config.Database.Redis.Password,
		DB:       dc.Config.Database.Redis.DB,
	})

	err := retry.Do(ctx, dc.Policy, func() error {
		return rdb.Ping(ctx).Err()
	}, dc.logRetry("redis"))
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.Infow("Redis connected successfully")
	return rdb, nil
}

func (dc *DatabaseConnector) SourceDSN() string {
	src := dc.Config.Database.Source
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		src.User,
		src.Password,
		src.Host,
		src.Port,
		src.DBName,
		src.SSLMode,
	)
}

func (dc *DatabaseConnector) InitSource(ctx context.Context) (*sqlx.DB, error) {
	src := dc.Config.Database.Source

	var db *sqlx.DB
	err := retry.Do(ctx, dc.Policy, func() error {
		conn, err := sqlx.ConnectContext(ctx, "postgres", dc.SourceDSN())
		if err != nil {
			return err
		}
		db = conn
		return nil
	}, dc.logRetry("source"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to source database: %w", err)
	}

	if src.MaxOpenConns > 0 {
		db.SetMaxOpenConns(src.MaxOpenConns)
	}
	if src.MaxIdleConns > 0 {
		db.SetMaxIdleConns(src.MaxIdleConns)
	}
	if src.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(src.ConnMaxLifetime)
	}

	dc.Logger.Infow("Source database connected successfully", "host", src.Host, "dbname", src.DBName)
	return db, nil
}

func (dc *DatabaseConnector) InitMongoDB(ctx context.Context) (*mongo.Client, error) {
	mongoOpts := options.Client().ApplyURI(dc.Config.Database.MongoDB.URI)
	mongoClient, err := mongo.Connect(ctx, mongoOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	err = retry.Do(ctx, dc.Policy, func() error {
		return mongoClient.Ping(ctx, nil)
	}, dc.logRetry("mongodb"))
	if err != nil {
		mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dc.Logger.Infow("MongoDB connected successfully")
	return mongoClient, nil
}

func (dc *DatabaseConnector) ShutdownDatabases(ctx context.Context, redis *redis.Client, source *sqlx.DB, mongo *mongo.Client) []error {
	var errs []error

	if redis != nil {
		if err := redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if source != nil {
		if err := source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("source close error: %w", err))
		}
	}

	if mongo != nil {
		if err := mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
	}

	return errs
}
