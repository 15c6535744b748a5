package integration

import (
	"fmt"
	"strings"
	"time"
)

// HistoryLimit caps the execution history kept on a configuration.
const HistoryLimit = 5

type TargetCollection string

const (
	CollectionProjects TargetCollection = "projects"
	CollectionUsers    TargetCollection = "users"
	CollectionTeams    TargetCollection = "teams"
)

func (c TargetCollection) Valid() bool {
	switch c {
	case CollectionProjects, CollectionUsers, CollectionTeams:
		return true
	}
	return false
}

type UpdateBehavior string

const (
	UpdateBehaviorUpdate UpdateBehavior = "update"
	UpdateBehaviorKeep   UpdateBehavior = "keep"
)

type TransformationType string

const (
	TransformTrim         TransformationType = "trim"
	TransformLowercase    TransformationType = "lowercase"
	TransformUppercase    TransformationType = "uppercase"
	TransformToNumber     TransformationType = "toNumber"
	TransformToString     TransformationType = "toString"
	TransformToDate       TransformationType = "toDate"
	TransformMapValue     TransformationType = "mapValue"
	TransformDefaultValue TransformationType = "defaultValue"
)

type ValueMapping struct {
	From any `bson:"from" json:"from"`
	To   any `bson:"to" json:"to"`
}

type TransformationOptions struct {
	Mappings     []ValueMapping `bson:"mappings,omitempty" json:"mappings,omitempty"`
	DefaultValue any            `bson:"default_value,omitempty" json:"defaultValue,omitempty"`
}

type Transformation struct {
	Type    TransformationType     `bson:"type" json:"type"`
	Options *TransformationOptions `bson:"options,omitempty" json:"options,omitempty"`
}

type FieldMapping struct {
	SourceField     string           `bson:"source_field" json:"sourceField"`
	TargetField     string           `bson:"target_field" json:"targetField"`
	Transformations []Transformation `bson:"transformations,omitempty" json:"transformations,omitempty"`
	UpdateBehavior  UpdateBehavior   `bson:"update_behavior,omitempty" json:"updateBehavior,omitempty"`
}

// Keep reports whether an existing target value must survive an update.
func (m FieldMapping) Keep() bool {
	return m.UpdateBehavior == UpdateBehaviorKeep
}

type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusPartial RunStatus = "partial"
	StatusError   RunStatus = "error"
)

type ErrorType string

const (
	ErrorValidation ErrorType = "validation"
	ErrorDuplicate  ErrorType = "duplicate"
	ErrorRequired   ErrorType = "required"
	ErrorProcessing ErrorType = "processing"
	ErrorSystem     ErrorType = "system"
)

type ErrorBucket struct {
	Type     ErrorType `bson:"type" json:"type"`
	Message  string    `bson:"message" json:"message"`
	Count    int       `bson:"count" json:"count"`
	Examples []string  `bson:"examples" json:"examples"`
}

type ExecutionLog struct {
	ID           string        `bson:"id" json:"id"`
	Status       RunStatus     `bson:"status" json:"status"`
	StartedAt    time.Time     `bson:"started_at" json:"startedAt"`
	FinishedAt   time.Time     `bson:"finished_at" json:"finishedAt"`
	Inserted     int           `bson:"inserted" json:"inserted"`
	Updated      int           `bson:"updated" json:"updated"`
	Failed       int           `bson:"failed" json:"failed"`
	TotalRecords int           `bson:"total_records" json:"totalRecords"`
	Message      string        `bson:"message,omitempty" json:"message,omitempty"`
	Errors       []ErrorBucket `bson:"errors,omitempty" json:"errors,omitempty"`
}

type Configuration struct {
	ID               string           `bson:"_id" json:"id"`
	Name             string           `bson:"name" json:"name"`
	Active           bool             `bson:"active" json:"active"`
	Description      string           `bson:"description,omitempty" json:"description,omitempty"`
	SourceView       string           `bson:"source_view" json:"sourceView"`
	FilterClause     string           `bson:"filter_clause,omitempty" json:"filterClause,omitempty"`
	SourceKeyField   string           `bson:"source_key_field" json:"sourceKeyField"`
	TargetKeyField   string           `bson:"target_key_field" json:"targetKeyField"`
	TargetCollection TargetCollection `bson:"target_collection" json:"targetCollection"`
	Mappings         []FieldMapping   `bson:"mappings" json:"mappings"`
	Schedule         Schedule         `bson:"schedule" json:"schedule"`
	History          []ExecutionLog   `bson:"history,omitempty" json:"history"`
	LastRunAt        *time.Time       `bson:"last_run_at,omitempty" json:"lastRunAt,omitempty"`
	LastStatus       RunStatus        `bson:"last_status,omitempty" json:"lastStatus,omitempty"`
	CreatedAt        time.Time        `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time        `bson:"updated_at" json:"updatedAt"`
}

// AppendLog prepends entry to the history and drops anything past HistoryLimit.
func (c *Configuration) AppendLog(entry ExecutionLog) {
	history := make([]ExecutionLog, 0, HistoryLimit)
	history = append(history, entry)
	history = append(history, c.History...)
	if len(history) > HistoryLimit {
		history = history[:HistoryLimit]
	}
	c.History = history

	finished := entry.FinishedAt
	c.LastRunAt = &finished
	c.LastStatus = entry.Status
}

// Validate checks the whole configuration, schedule included.
func (c *Configuration) Validate() error {
	return c.validate(true)
}

// ValidateRunnable checks what a run needs. The schedule is ignored since an
// on-demand run never evaluates it.
func (c *Configuration) ValidateRunnable() error {
	return c.validate(false)
}

func (c *Configuration) validate(withSchedule bool) error {
	var problems []string

	if strings.TrimSpace(c.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(c.SourceView) == "" {
		problems = append(problems, "sourceView is required")
	}
	if strings.TrimSpace(c.SourceKeyField) == "" {
		problems = append(problems, "sourceKeyField is required")
	}
	if strings.TrimSpace(c.TargetKeyField) == "" {
		problems = append(problems, "targetKeyField is required")
	}
	if !c.TargetCollection.Valid() {
		problems = append(problems, fmt.Sprintf("unknown targetCollection %q", c.TargetCollection))
	}
	if len(c.Mappings) == 0 {
		problems = append(problems, "at least one mapping is required")
	}

	for i, m := range c.Mappings {
		if m.SourceField == "" || m.TargetField == "" {
			problems = append(problems, fmt.Sprintf("mappings[%d]: sourceField and targetField are required", i))
		}
		switch m.UpdateBehavior {
		case "", UpdateBehaviorUpdate, UpdateBehaviorKeep:
		default:
			problems = append(problems, fmt.Sprintf("mappings[%d]: unknown updateBehavior %q", i, m.UpdateBehavior))
		}
		for j, t := range m.Transformations {
			if !t.Type.Valid() {
				problems = append(problems, fmt.Sprintf("mappings[%d].transformations[%d]: unknown type %q", i, j, t.Type))
			}
		}
	}

	if withSchedule {
		if err := c.Schedule.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (t TransformationType) Valid() bool {
	switch t {
	case TransformTrim, TransformLowercase, TransformUppercase, TransformToNumber,
		TransformToString, TransformToDate, TransformMapValue, TransformDefaultValue:
		return true
	}
	return false
}
