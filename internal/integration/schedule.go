package integration

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

type ScheduleMode string

const (
	ScheduleNone   ScheduleMode = "none"
	ScheduleCron   ScheduleMode = "cron"
	SchedulePreset ScheduleMode = "preset"
)

var presetDescriptors = map[string]string{
	"hourly":  "@hourly",
	"daily":   "@daily",
	"weekly":  "@weekly",
	"monthly": "@monthly",
}

var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Schedule is trigger data only. Nothing in this module fires it.
type Schedule struct {
	Mode           ScheduleMode `bson:"mode" json:"mode"`
	CronExpression string       `bson:"cron_expression,omitempty" json:"cronExpression,omitempty"`
	Preset         string       `bson:"preset,omitempty" json:"preset,omitempty"`
	Timezone       string       `bson:"timezone,omitempty" json:"timezone,omitempty"`
}

func (s Schedule) Validate() error {
	_, err := s.parse()
	return err
}

func (s Schedule) parse() (cron.Schedule, error) {
	var expr string
	switch s.Mode {
	case "", ScheduleNone:
		return nil, nil
	case ScheduleCron:
		if s.CronExpression == "" {
			return nil, fmt.Errorf("schedule: cron mode requires cronExpression")
		}
		expr = s.CronExpression
	case SchedulePreset:
		d, ok := presetDescriptors[s.Preset]
		if !ok {
			return nil, fmt.Errorf("schedule: unknown preset %q", s.Preset)
		}
		expr = d
	default:
		return nil, fmt.Errorf("schedule: unknown mode %q", s.Mode)
	}

	if _, err := s.location(); err != nil {
		return nil, err
	}

	sched, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: invalid expression %q: %w", expr, err)
	}
	return sched, nil
}

func (s Schedule) location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule: invalid timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// NextRun returns the first activation strictly after from, or nil for an
// unscheduled configuration.
func (s Schedule) NextRun(from time.Time) (*time.Time, error) {
	sched, err := s.parse()
	if err != nil || sched == nil {
		return nil, err
	}
	loc, err := s.location()
	if err != nil {
		return nil, err
	}
	next := sched.Next(from.In(loc))
	return &next, nil
}
