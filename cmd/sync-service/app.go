package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"datasync/internal/config"
	"datasync/internal/constants"
	"datasync/internal/integration"
	"datasync/internal/logger"
	"datasync/internal/management"
	"datasync/internal/reconcile"
	"datasync/internal/source"
	"datasync/internal/target"
	"datasync/pkg/bootstrap"
	"datasync/pkg/circuitbreaker"
	"datasync/pkg/health"
	"datasync/pkg/lock"
	"datasync/pkg/logging"
	"datasync/pkg/metrics"
	"datasync/pkg/middleware"
	"datasync/pkg/migrations"
	"datasync/pkg/ratelimit"
	"datasync/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	mongoClient    *mongo.Client
	sourceDB       *sqlx.DB
	redisClient    *redis.Client
	service        management.Service
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

// Initialize connects every dependency and builds the engine. The HTTP
// surface is only built by Serve.
func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterSyncMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initEngine(); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = mongoClient

	if a.Config.Database.MongoDB.EnsureIndexes {
		if err := migrations.EnsureIndexes(ctx, a.mongoDatabase()); err != nil {
			return err
		}
		a.Logger.InfowCtx(ctx, "MongoDB indexes ensured")
	}

	sourceDB, err := a.dbConnector.InitSource(ctx)
	if err != nil {
		return err
	}
	a.sourceDB = sourceDB

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redisClient = redisClient

	return nil
}

func (a *App) mongoDatabase() *mongo.Database {
	dbName := a.Config.Database.MongoDB.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}
	return a.mongoClient.Database(dbName)
}

func (a *App) sourceReader() source.Reader {
	var reader source.Reader = source.NewPostgresReader(a.sourceDB)
	if !a.Config.CircuitBreaker.Enabled {
		return reader
	}

	cbCfg := circuitbreaker.DefaultConfig("source-db")
	cb := a.Config.CircuitBreaker
	if cb.MaxRequests > 0 {
		cbCfg.MaxRequests = cb.MaxRequests
	}
	if cb.Interval > 0 {
		cbCfg.Interval = cb.Interval
	}
	if cb.Timeout > 0 {
		cbCfg.Timeout = cb.Timeout
	}
	if cb.FailureRatio > 0 {
		cbCfg.ReadyToTrip = circuitbreaker.RatioTrip(cb.MinRequests, cb.FailureRatio)
	}
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		a.Logger.Warnw("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
	}

	return source.NewBreakerReader(reader, circuitbreaker.NewWrapper(cbCfg))
}

func (a *App) initEngine() error {
	db := a.mongoDatabase()
	configs := integration.NewRepository(db)

	engine, err := reconcile.NewEngine(
		configs,
		target.NewMongoRegistry(db),
		target.NewMongoOwnerResolver(db, a.Config.Sync.AdminRole),
		a.sourceReader(),
		a.Publisher,
		a.Logger,
		reconcile.Options{DefaultPassword: a.Config.Sync.DefaultPassword},
	)
	if err != nil {
		return err
	}

	var locker lock.Locker
	if a.redisClient != nil {
		locker = lock.NewRedisLocker(a.redisClient, constants.LockKeyPrefix)
	} else {
		a.Logger.Warnw("Redis not configured, run lock is local to this process")
		locker = lock.NewMemoryLocker()
	}

	a.service = management.NewService(configs, engine, locker, management.ServiceConfig{
		LockTTL:          a.Config.Sync.LockTTL,
		ExecutionTimeout: a.Config.Sync.ExecutionTimeout,
	}, a.Logger)
	return nil
}

func (a *App) initHTTPServer(ctx context.Context) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	if rl := a.Config.Management.RateLimit; rl.Enabled {
		metrics.RegisterManagementMetrics()
		rateLimitConfig := ratelimit.DefaultConfig()
		if rl.RPS > 0 {
			rateLimitConfig.RPS = rl.RPS
		}
		if rl.Burst > 0 {
			rateLimitConfig.Burst = rl.Burst
		}
		if rl.CleanupInterval > 0 {
			rateLimitConfig.CleanupInterval = time.Duration(rl.CleanupInterval) * time.Second
		}
		if rl.MaxAge > 0 {
			rateLimitConfig.MaxAge = time.Duration(rl.MaxAge) * time.Second
		}
		router.Use(ratelimit.Middleware(ctx, rateLimitConfig))
		a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	management.NewHandler(a.service, a.Logger).RegisterRoutes(router)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	healthRegistry.Register(health.NewSourceChecker(a.sourceDB))
	if a.redisClient != nil {
		healthRegistry.RegisterOptional(health.NewRedisChecker(a.redisClient))
	}

	router.GET("/health", func(c *gin.Context) {
		checkCtx, cancel := context.WithTimeout(c.Request.Context(), constants.HealthTimeout)
		defer cancel()
		h := healthRegistry.Check(checkCtx)
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
}

// Serve runs the management API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	a.initHTTPServer(ctx)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(context.WithoutCancel(ctx))
	})

	return g.Wait()
}

// ExecuteOnce runs a single integration under the same lock and timeout as
// the HTTP trigger.
func (a *App) ExecuteOnce(ctx context.Context, integrationID, userID string) (*reconcile.Result, error) {
	ctx = logging.WithServiceName(ctx, constants.ServiceName)
	return a.service.ExecuteIntegration(ctx, integrationID, userID)
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down sync service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			serverCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(serverCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.sourceDB, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
