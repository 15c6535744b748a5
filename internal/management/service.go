package management

import (
	"context"
	"errors"
	"fmt"
	"time"

	"datasync/internal/integration"
	"datasync/internal/logger"
	"datasync/internal/reconcile"
	pkgerrors "datasync/pkg/errors"
	"datasync/pkg/lock"
)

type Executor interface {
	Execute(ctx context.Context, configID, invokingUserID string) (*reconcile.Result, error)
}

type Service interface {
	ListIntegrations(ctx context.Context) ([]IntegrationSummary, error)
	GetIntegration(ctx context.Context, id string) (*IntegrationDetail, error)
	GetHistory(ctx context.Context, id string) ([]integration.ExecutionLog, error)
	ExecuteIntegration(ctx context.Context, id, userID string) (*reconcile.Result, error)
}

type ServiceConfig struct {
	LockTTL          time.Duration
	ExecutionTimeout time.Duration
}

type service struct {
	repo     integration.Repository
	executor Executor
	locker   lock.Locker
	cfg      ServiceConfig
	logger   logger.Logger
	now      func() time.Time
}

func NewService(repo integration.Repository, executor Executor, locker lock.Locker, cfg ServiceConfig, log logger.Logger) Service {
	return &service{
		repo:     repo,
		executor: executor,
		locker:   locker,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
	}
}

func (s *service) ListIntegrations(ctx context.Context) ([]IntegrationSummary, error) {
	configs, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.ErrInternal.WithCause(err)
	}

	now := s.now()
	out := make([]IntegrationSummary, 0, len(configs))
	for _, cfg := range configs {
		next, err := cfg.Schedule.NextRun(now)
		if err != nil {
			s.logger.WarnwCtx(ctx, "Skipping next run for invalid schedule", "integration_id", cfg.ID, "error", err)
		}
		out = append(out, toSummary(cfg, next))
	}
	return out, nil
}

func (s *service) GetIntegration(ctx context.Context, id string) (*IntegrationDetail, error) {
	cfg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &IntegrationDetail{Configuration: *cfg}
	next, err := cfg.Schedule.NextRun(s.now())
	if err != nil {
		detail.ScheduleError = err.Error()
	}
	detail.NextRunAt = next
	return detail, nil
}

func (s *service) GetHistory(ctx context.Context, id string) ([]integration.ExecutionLog, error) {
	cfg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg.History == nil {
		return []integration.ExecutionLog{}, nil
	}
	return cfg.History, nil
}

// ExecuteIntegration runs the configuration once while holding its run lock.
// The run is detached from ctx cancellation so a disconnecting caller cannot
// abort it; only ExecutionTimeout bounds it.
func (s *service) ExecuteIntegration(ctx context.Context, id, userID string) (*reconcile.Result, error) {
	runCtx := context.WithoutCancel(ctx)

	release, err := s.locker.Acquire(runCtx, id, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, pkgerrors.ErrRunInProgress.WithDetail("integration_id", id)
		}
		return nil, pkgerrors.ErrInternal.WithCause(err)
	}
	defer func() {
		if err := release(runCtx); err != nil {
			s.logger.WarnwCtx(runCtx, "Failed to release run lock", "integration_id", id, "error", err)
		}
	}()

	if s.cfg.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, s.cfg.ExecutionTimeout)
		defer cancel()
	}

	return s.executor.Execute(runCtx, id, userID)
}

func (s *service) load(ctx context.Context, id string) (*integration.Configuration, error) {
	cfg, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, pkgerrors.ErrInternal.WithCause(err)
	}
	if cfg == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("integration %s not found", id))
	}
	return cfg, nil
}
