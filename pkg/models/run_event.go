package models

import "time"

// RunCompletedEvent is published after every synchronization run that
// produced an execution log entry.
type RunCompletedEvent struct {
	EventType        string            `json:"event_type"`
	IntegrationID    string            `json:"integration_id"`
	IntegrationName  string            `json:"integration_name"`
	TargetCollection string            `json:"target_collection"`
	RunID            string            `json:"run_id"`
	Status           string            `json:"status"`
	Inserted         int               `json:"inserted"`
	Updated          int               `json:"updated"`
	Failed           int               `json:"failed"`
	TotalRecords     int               `json:"total_records"`
	Message          string            `json:"message"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at"`
	TriggeredBy      string            `json:"triggered_by,omitempty"`
	ErrorCounts      map[string]int    `json:"error_counts,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

const EventTypeRunCompleted = "integration_run_completed"
