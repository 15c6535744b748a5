package management

import (
	"time"

	"datasync/internal/integration"
)

type IntegrationSummary struct {
	ID               string                       `json:"id"`
	Name             string                       `json:"name"`
	Active           bool                         `json:"active"`
	TargetCollection integration.TargetCollection `json:"targetCollection"`
	SourceView       string                       `json:"sourceView"`
	Schedule         integration.Schedule         `json:"schedule"`
	LastRunAt        *time.Time                   `json:"lastRunAt,omitempty"`
	LastStatus       integration.RunStatus        `json:"lastStatus,omitempty"`
	NextRunAt        *time.Time                   `json:"nextRunAt,omitempty"`
}

type IntegrationDetail struct {
	integration.Configuration
	NextRunAt *time.Time `json:"nextRunAt,omitempty"`
	// ScheduleError is set when the stored schedule cannot be evaluated.
	ScheduleError string `json:"scheduleError,omitempty"`
}

type ExecuteRequest struct {
	UserID string `json:"userId"`
}

func toSummary(cfg integration.Configuration, next *time.Time) IntegrationSummary {
	return IntegrationSummary{
		ID:               cfg.ID,
		Name:             cfg.Name,
		Active:           cfg.Active,
		TargetCollection: cfg.TargetCollection,
		SourceView:       cfg.SourceView,
		Schedule:         cfg.Schedule,
		LastRunAt:        cfg.LastRunAt,
		LastStatus:       cfg.LastStatus,
		NextRunAt:        next,
	}
}
