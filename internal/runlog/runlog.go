// Package runlog turns the outcome of one run into an execution log entry
// and persists it into the configuration's bounded history.
package runlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"datasync/internal/integration"
	"datasync/internal/logger"
	"datasync/pkg/metrics"
)

// Summary holds the counters of a finished run.
type Summary struct {
	// RunID becomes the entry id. A random id is generated when empty.
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Inserted   int
	Updated    int
	Failed     int
	Total      int
	// Aborted marks a run-level failure. The run is an error regardless of counts.
	Aborted bool
	Buckets []integration.ErrorBucket
}

// Status derives the run status from its counters.
func Status(s Summary) integration.RunStatus {
	switch {
	case s.Aborted:
		return integration.StatusError
	case s.Failed == 0:
		return integration.StatusSuccess
	case s.Inserted+s.Updated > 0:
		return integration.StatusPartial
	default:
		return integration.StatusError
	}
}

// Message describes the run for operators. A single error bucket is quoted
// as the cause; several are summarized by count.
func Message(s Summary) string {
	switch len(s.Buckets) {
	case 0:
		return fmt.Sprintf("%d records processed: %d inserted, %d updated", s.Total, s.Inserted, s.Updated)
	case 1:
		b := s.Buckets[0]
		if b.Count > 1 {
			return fmt.Sprintf("%s (%d records)", b.Message, b.Count)
		}
		return b.Message
	default:
		return fmt.Sprintf("%d of %d records failed with %d distinct errors: %d inserted, %d updated",
			s.Failed, s.Total, len(s.Buckets), s.Inserted, s.Updated)
	}
}

// BuildEntry turns a summary into a history entry.
func BuildEntry(s Summary) integration.ExecutionLog {
	id := s.RunID
	if id == "" {
		id = uuid.NewString()
	}
	return integration.ExecutionLog{
		ID:           id,
		Status:       Status(s),
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		Inserted:     s.Inserted,
		Updated:      s.Updated,
		Failed:       s.Failed,
		TotalRecords: s.Total,
		Message:      Message(s),
		Errors:       s.Buckets,
	}
}

// Recorder persists execution logs and checks target counts.
type Recorder struct {
	repo   integration.Repository
	logger logger.Logger
}

// NewRecorder creates a Recorder writing to repo.
func NewRecorder(repo integration.Repository, log logger.Logger) *Recorder {
	return &Recorder{repo: repo, logger: log}
}

// Record builds the entry for s and appends it to the configuration history.
func (r *Recorder) Record(ctx context.Context, configID string, s Summary) (integration.ExecutionLog, error) {
	entry := BuildEntry(s)
	if err := r.repo.AppendExecutionLog(ctx, configID, entry); err != nil {
		r.logger.ErrorwCtx(ctx, "Failed to persist execution log",
			"error", err,
			"status", entry.Status,
		)
		return entry, fmt.Errorf("failed to record execution log: %w", err)
	}

	r.logger.InfowCtx(ctx, "Execution log recorded",
		"status", entry.Status,
		"inserted", entry.Inserted,
		"updated", entry.Updated,
		"failed", entry.Failed,
		"total", entry.TotalRecords,
		"error_buckets", len(entry.Errors),
	)
	return entry, nil
}

// CheckCounts flags a run whose final entity count disagrees with the
// initial count plus inserts. It returns false on a mismatch.
func (r *Recorder) CheckCounts(ctx context.Context, collection integration.TargetCollection, initial, final, inserted int) bool {
	r.logger.InfowCtx(ctx, "Target entity counts",
		"collection", collection,
		"initial_count", initial,
		"final_count", final,
		"inserted", inserted,
	)
	if final == initial+inserted {
		return true
	}

	metrics.IncCountInconsistency(string(collection))
	r.logger.ErrorwCtx(ctx, "COUNT INCONSISTENCY: target collection size does not match inserts",
		"collection", collection,
		"initial_count", initial,
		"final_count", final,
		"inserted", inserted,
		"expected_count", initial+inserted,
		"difference", final-(initial+inserted),
	)
	return false
}
