package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"datasync/internal/classify"
	"datasync/internal/integration"
	"datasync/internal/mapper"
	"datasync/internal/target"
	"datasync/internal/transform"
	pkgerrors "datasync/pkg/errors"
	"datasync/pkg/metrics"
)

// runState is owned by a single Execute call. collectionEmpty is computed
// once before the first row and never refreshed.
type runState struct {
	cfg       *integration.Configuration
	runID     string
	startedAt time.Time
	sql       string
	warnings  []string

	rules target.Rules
	store target.Store
	env   target.Env
	keep  map[string]struct{}

	initialCount    int
	collectionEmpty bool

	inserted, updated, failed, total int
	aborted                          bool
	interrupted                      error
	classifier                       *classify.Classifier
}

type outcome int

const (
	outcomeInserted outcome = iota + 1
	outcomeUpdated
)

func (e *Engine) processRow(ctx context.Context, run *runState, index int, row map[string]any) {
	example := fmt.Sprintf("row %d", index+1)
	if key := row[run.cfg.SourceKeyField]; !blank(key) {
		example = fmt.Sprintf("%s=%s", run.cfg.SourceKeyField, transform.Stringify(key))
	}

	result, err := e.reconcileRow(ctx, run, row)
	switch {
	case err != nil:
		run.failed++
		typ := run.classifier.Add(err, example)
		metrics.IncRecordError(string(run.cfg.TargetCollection), string(typ))
		e.logger.DebugwCtx(ctx, "Record failed", "record", example, "type", typ, "error", err)
	case result == outcomeInserted:
		run.inserted++
		e.logger.DebugwCtx(ctx, "Record inserted", "record", example)
	case result == outcomeUpdated:
		run.updated++
		e.logger.DebugwCtx(ctx, "Record updated", "record", example)
	}
}

func (e *Engine) reconcileRow(ctx context.Context, run *runState, row map[string]any) (result outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &classify.Error{
				Type:    integration.ErrorProcessing,
				Message: fmt.Sprintf("unexpected failure while processing record: %v", r),
				Cause:   pkgerrors.RecoverPanic(r),
			}
		}
	}()

	cfg := run.cfg

	sourceKey := row[cfg.SourceKeyField]
	if blank(sourceKey) {
		return 0, classify.Validation(fmt.Sprintf("source key field %q is empty", cfg.SourceKeyField))
	}

	payload, err := mapper.Map(row, cfg.Mappings)
	if err != nil {
		return 0, classify.Validation(err.Error())
	}

	targetKey := payload[cfg.TargetKeyField]
	if blank(targetKey) {
		targetKey = sourceKey
		payload[cfg.TargetKeyField] = sourceKey
	}

	insertOnly, err := run.rules.Prepare(payload, run.env)
	if err != nil {
		return 0, err
	}

	existing, err := e.resolve(ctx, run, targetKey)
	if err != nil {
		return 0, err
	}

	if existing != nil {
		set, err := run.rules.ForUpdate(payload, run.keep, run.env)
		if err != nil {
			return 0, err
		}
		if err := run.store.Update(ctx, existing.ID, set); err != nil {
			return 0, persistenceError(run, err)
		}
		return outcomeUpdated, nil
	}

	doc, err := run.rules.ForInsert(payload, insertOnly, run.env)
	if err != nil {
		return 0, err
	}
	if _, err := run.store.Insert(ctx, doc); err != nil {
		return 0, persistenceError(run, err)
	}
	return outcomeInserted, nil
}

// resolve finds the entity a row should update. A lookup whose result does
// not carry the searched key is treated as no match.
func (e *Engine) resolve(ctx context.Context, run *runState, key any) (*target.Entity, error) {
	if run.collectionEmpty {
		return nil, nil
	}

	field := run.cfg.TargetKeyField
	found, err := run.store.FindByKey(ctx, field, key)
	if err != nil {
		return nil, persistenceError(run, err)
	}
	if found == nil {
		return nil, nil
	}

	if !target.KeyMatches(found.Fields[field], key) {
		metrics.IncFalsePositiveMatch(string(run.cfg.TargetCollection))
		e.logger.WarnwCtx(ctx, "Discarding lookup result whose key does not match",
			"field", field,
			"searched", key,
			"found", found.Fields[field],
			"entity_id", found.ID,
		)
		return nil, nil
	}
	return found, nil
}

// persistenceError maps a store failure to duplicate or system. Duplicate
// messages omit the driver text so identical conflicts share one bucket.
func persistenceError(run *runState, err error) error {
	if classify.IsDuplicate(err) {
		return &classify.Error{
			Type: integration.ErrorDuplicate,
			Message: fmt.Sprintf("duplicate key: a %s entity with the same unique field already exists",
				strings.TrimSuffix(string(run.cfg.TargetCollection), "s")),
			Cause: err,
		}
	}
	return classify.System(fmt.Sprintf("failed to persist record: %v", err), err)
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
