package models

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule binds a cron expression to a pipeline.
// Cron uses the standard 5-field format (minute hour day month weekday).
type Schedule struct {
	ID         string    `json:"id"`
	PipelineID string    `json:"pipeline_id" validate:"required"`
	Cron       string    `json:"cron"        validate:"required"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks the cron expression.
func (s *Schedule) Validate() error {
	if s.PipelineID == "" || s.Cron == "" {
		return ErrInvalidSchedule
	}

	if _, err := cron.ParseStandard(s.Cron); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	return nil
}

// NextAfter returns the next activation strictly after reference.
func (s *Schedule) NextAfter(reference time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(s.Cron)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	return schedule.Next(reference), nil
}
