// Package reconcile executes an integration: it reads the source view, maps
// every row and inserts or updates the matching target entity, then records
// the run in the configuration history.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"datasync/internal/broker"
	"datasync/internal/classify"
	"datasync/internal/integration"
	"datasync/internal/logger"
	"datasync/internal/mapper"
	"datasync/internal/query"
	"datasync/internal/runlog"
	"datasync/internal/source"
	"datasync/internal/target"
	pkgerrors "datasync/pkg/errors"
	"datasync/pkg/logging"
	"datasync/pkg/metrics"
	"datasync/pkg/models"
	"datasync/pkg/tracing"
)

const recordTimeout = 10 * time.Second

// Options tunes credential handling for user targets.
type Options struct {
	DefaultPassword string
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Engine reconciles one integration configuration per Execute call.
type Engine struct {
	configs  integration.Repository
	stores   target.Registry
	owners   target.OwnerResolver
	source   source.Reader
	events   broker.Publisher
	recorder *runlog.Recorder
	logger   logger.Logger
	tracer   trace.Tracer

	defaultPasswordHash string
	bcryptCost          int
}

// Result is the outcome of a single run as returned to the caller.
type Result struct {
	RunID    string                `json:"runId"`
	Status   integration.RunStatus `json:"status"`
	Inserted int                   `json:"inserted"`
	Updated  int                   `json:"updated"`
	Failed   int                   `json:"failed"`
	Total    int                   `json:"total"`
	Warnings []string              `json:"warnings,omitempty"`
}

// NewEngine hashes the default password once and wires the run dependencies.
func NewEngine(
	configs integration.Repository,
	stores target.Registry,
	owners target.OwnerResolver,
	src source.Reader,
	events broker.Publisher,
	log logger.Logger,
	opts Options,
) (*Engine, error) {
	if opts.DefaultPassword == "" {
		return nil, errors.New("default password is required")
	}
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := target.HashPassword(opts.DefaultPassword, cost)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = broker.NopPublisher{}
	}

	return &Engine{
		configs:             configs,
		stores:              stores,
		owners:              owners,
		source:              src,
		events:              events,
		recorder:            runlog.NewRecorder(configs, log),
		logger:              log,
		tracer:              tracing.GetTracer("datasync/reconcile"),
		defaultPasswordHash: hash,
		bcryptCost:          cost,
	}, nil
}

// Execute runs configuration configID once. invokingUserID is the owner
// fallback for projects when no active administrator exists. Callers must
// not run the same configuration concurrently.
func (e *Engine) Execute(ctx context.Context, configID, invokingUserID string) (_ *Result, err error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(logging.WithIntegrationID(ctx, configID), runID)

	ctx, span := e.tracer.Start(ctx, "integration.execute", trace.WithAttributes(
		attribute.String("integration.id", configID),
		attribute.String("run.id", runID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	cfg, err := e.configs.Get(ctx, configID)
	if err != nil {
		return nil, pkgerrors.ErrInternal.WithCause(err)
	}
	if cfg == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("integration %s not found", configID))
	}
	if !cfg.Active {
		return nil, pkgerrors.ErrValidation.WithDetail("message", fmt.Sprintf("integration %s is inactive", configID))
	}
	span.SetAttributes(attribute.String("integration.collection", string(cfg.TargetCollection)))

	metrics.SyncRunsInProgress.Inc()
	defer metrics.SyncRunsInProgress.Dec()

	run := &runState{
		cfg:        cfg,
		runID:      runID,
		startedAt:  time.Now().UTC(),
		classifier: classify.New(),
		keep:       mapper.KeptFields(cfg.Mappings),
	}

	e.logger.InfowCtx(ctx, "Starting integration run",
		"name", cfg.Name,
		"collection", cfg.TargetCollection,
		"view", cfg.SourceView,
		"invoked_by", invokingUserID,
	)

	if err := e.prepare(ctx, run, invokingUserID); err != nil {
		return e.abort(ctx, run, err)
	}

	rows, err := e.source.Query(ctx, run.sql)
	if err != nil {
		run.classifier.Record(integration.ErrorSystem,
			fmt.Sprintf("source query failed: %s: %v", run.sql, err), run.sql)
		e.logger.ErrorwCtx(ctx, "Source query failed", "error", err, "query", run.sql)
		return e.abort(ctx, run, pkgerrors.ErrSourceUnavailable.WithCause(err).WithDetail("query", run.sql))
	}
	run.total = len(rows)
	e.logger.InfowCtx(ctx, "Source rows fetched", "rows", run.total)

	for i, row := range rows {
		if ctxErr := ctx.Err(); ctxErr != nil {
			remaining := len(rows) - i
			run.failed += remaining
			run.classifier.Record(integration.ErrorSystem,
				fmt.Sprintf("run interrupted before all records were processed: %v", ctxErr),
				fmt.Sprintf("%d records not processed", remaining))
			run.interrupted = ctxErr
			break
		}
		e.processRow(ctx, run, i, row)
	}

	return e.finish(ctx, run)
}

func (e *Engine) prepare(ctx context.Context, run *runState, invokingUserID string) error {
	cfg := run.cfg

	if err := cfg.ValidateRunnable(); err != nil {
		run.classifier.Record(integration.ErrorValidation, err.Error(), cfg.ID)
		e.logger.WarnwCtx(ctx, "Rejected integration configuration", "error", err)
		return pkgerrors.ErrValidation.WithCause(err)
	}

	rules, err := target.RulesFor(cfg.TargetCollection)
	if err != nil {
		run.classifier.Record(integration.ErrorValidation, err.Error(), "")
		return pkgerrors.ErrValidation.WithCause(err)
	}
	store, err := e.stores.Store(cfg.TargetCollection)
	if err != nil {
		run.classifier.Record(integration.ErrorSystem, err.Error(), "")
		return pkgerrors.ErrInternal.WithCause(err)
	}
	run.rules, run.store = rules, store

	q, err := query.Build(cfg.SourceView, cfg.FilterClause)
	if err != nil {
		run.classifier.Record(integration.ErrorValidation, err.Error(), cfg.FilterClause)
		e.logger.WarnwCtx(ctx, "Rejected source query", "error", err, "filter", cfg.FilterClause)

		var unsafe *query.UnsafeFilterError
		if errors.As(err, &unsafe) {
			return pkgerrors.ErrUnsafeFilter.WithCause(err).WithDetail("keyword", unsafe.Keyword)
		}
		return pkgerrors.ErrValidation.WithCause(err)
	}
	run.sql, run.warnings = q.SQL, q.Warnings
	for _, w := range q.Warnings {
		e.logger.WarnwCtx(ctx, "Filter clause warning", "warning", w, "filter", cfg.FilterClause)
	}
	e.logger.DebugwCtx(ctx, "Source query built", "query", q.SQL)

	initial, err := store.Count(ctx)
	if err != nil {
		run.classifier.Record(integration.ErrorSystem, fmt.Sprintf("failed to count target entities: %v", err), "")
		return pkgerrors.ErrInternal.WithCause(err)
	}
	run.initialCount = initial
	run.collectionEmpty = initial == 0

	env, err := target.ResolveEnv(ctx, e.owners, invokingUserID, e.defaultPasswordHash, e.bcryptCost)
	if err != nil {
		e.logger.WarnwCtx(ctx, "Failed to resolve default owner from administrators", "error", err)
	}
	run.env = env
	if cfg.TargetCollection == integration.CollectionProjects && env.DefaultOwner == "" {
		e.logger.WarnwCtx(ctx, "No default owner resolved, projects without createdBy will fail")
	}
	return nil
}

// abort records a run-level failure and returns it to the caller.
func (e *Engine) abort(ctx context.Context, run *runState, cause error) (*Result, error) {
	run.aborted = true
	result, err := e.finish(ctx, run)
	if err != nil {
		e.logger.ErrorwCtx(ctx, "Failed to record aborted run", "error", err)
	}
	return result, cause
}

func (e *Engine) finish(ctx context.Context, run *runState) (*Result, error) {
	// The run context may already be cancelled; bookkeeping still has to land.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	collection := string(run.cfg.TargetCollection)
	if run.store != nil && !run.aborted {
		final, err := run.store.Count(recordCtx)
		if err != nil {
			e.logger.WarnwCtx(ctx, "Failed to count target entities after run", "error", err)
		} else {
			e.recorder.CheckCounts(ctx, run.cfg.TargetCollection, run.initialCount, final, run.inserted)
		}
	}

	summary := runlog.Summary{
		RunID:      run.runID,
		StartedAt:  run.startedAt,
		FinishedAt: time.Now().UTC(),
		Inserted:   run.inserted,
		Updated:    run.updated,
		Failed:     run.failed,
		Total:      run.total,
		Aborted:    run.aborted || run.interrupted != nil,
		Buckets:    run.classifier.Buckets(),
	}
	entry, recErr := e.recorder.Record(recordCtx, run.cfg.ID, summary)

	metrics.ObserveRun(collection, string(entry.Status), summary.FinishedAt.Sub(summary.StartedAt))
	metrics.AddRecords(collection, run.inserted, run.updated, run.failed)

	e.publish(recordCtx, run, entry)

	e.logger.InfowCtx(ctx, "Integration run finished",
		"status", entry.Status,
		"inserted", run.inserted,
		"updated", run.updated,
		"failed", run.failed,
		"total", run.total,
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)

	result := &Result{
		RunID:    run.runID,
		Status:   entry.Status,
		Inserted: run.inserted,
		Updated:  run.updated,
		Failed:   run.failed,
		Total:    run.total,
		Warnings: run.warnings,
	}
	if recErr != nil {
		return result, pkgerrors.ErrInternal.WithCause(recErr)
	}
	if run.interrupted != nil {
		return result, pkgerrors.ErrInternal.WithCause(run.interrupted).
			WithDetail("message", "integration run interrupted")
	}
	return result, nil
}

func (e *Engine) publish(ctx context.Context, run *runState, entry integration.ExecutionLog) {
	counts := make(map[string]int, len(entry.Errors))
	for _, b := range entry.Errors {
		counts[string(b.Type)] += b.Count
	}

	event := models.RunCompletedEvent{
		EventType:        models.EventTypeRunCompleted,
		IntegrationID:    run.cfg.ID,
		IntegrationName:  run.cfg.Name,
		TargetCollection: string(run.cfg.TargetCollection),
		RunID:            run.runID,
		Status:           string(entry.Status),
		Inserted:         entry.Inserted,
		Updated:          entry.Updated,
		Failed:           entry.Failed,
		TotalRecords:     entry.TotalRecords,
		Message:          entry.Message,
		StartedAt:        entry.StartedAt,
		FinishedAt:       entry.FinishedAt,
		ErrorCounts:      counts,
	}
	if err := e.events.PublishRunCompleted(ctx, event); err != nil {
		e.logger.WarnwCtx(ctx, "Failed to publish run completed event", "error", err)
	}
}
