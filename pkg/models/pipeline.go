// Package models defines the pipeline, job, param and dependency records of the orchestrator.
package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// PipelineStatus represents the lifecycle state of a pipeline.
type PipelineStatus string

const (
	PipelineStatusIdle      PipelineStatus = "idle"
	PipelineStatusRunning   PipelineStatus = "running"
	PipelineStatusStopping  PipelineStatus = "stopping"
	PipelineStatusSucceeded PipelineStatus = "succeeded"
	PipelineStatusFailed    PipelineStatus = "failed"

	// PipelineStatusFinished is a legacy terminal status still accepted as a restart point.
	PipelineStatusFinished PipelineStatus = "finished"
)

var pipelineRestartable = []PipelineStatus{
	PipelineStatusIdle,
	PipelineStatusFinished,
	PipelineStatusFailed,
	PipelineStatusSucceeded,
}

// Pipeline is a named collection of jobs, their dependency edges, schedules and params.
type Pipeline struct {
	ID                     string         `json:"id"`
	Name                   string         `json:"name"                     validate:"required,max=255"`
	EmailsForNotifications string         `json:"emails_for_notifications" validate:"max=255"`
	Status                 PipelineStatus `json:"status"                   validate:"required,oneof=idle running stopping succeeded failed finished"`
	StatusChangedAt        *time.Time     `json:"status_changed_at,omitempty"`
	RunOnSchedule          bool           `json:"run_on_schedule"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// NewPipeline returns an idle pipeline.
func NewPipeline(name string) *Pipeline {
	return &Pipeline{
		Name:   name,
		Status: PipelineStatusIdle,
	}
}

// Recipients returns the notification addresses.
func (p *Pipeline) Recipients() []string {
	return strings.Fields(p.EmailsForNotifications)
}

// CanStart reports whether the pipeline is at a restart point.
func (p *Pipeline) CanStart() bool {
	return slices.Contains(pipelineRestartable, p.Status)
}

// IsActive reports whether the pipeline still has jobs in flight.
func (p *Pipeline) IsActive() bool {
	return p.Status == PipelineStatusRunning || p.Status == PipelineStatusStopping
}

// IsBlocked reports whether the pipeline is schedule-driven or active.
// Blocked pipelines must not be edited or destroyed.
func (p *Pipeline) IsBlocked() bool {
	return p.RunOnSchedule || p.IsActive()
}

func (p *Pipeline) SetStatus(status PipelineStatus, now time.Time) {
	p.Status = status
	p.StatusChangedAt = &now
}

// AssignAttributes updates the allow-listed scalar fields from an untyped map.
// Relation keys are skipped; any other key is rejected.
func (p *Pipeline) AssignAttributes(attributes map[string]any) error {
	for key, value := range attributes {
		switch key {
		case "id", "jobs", "params", "schedules":
			continue
		case "name":
			name, err := stringAttribute(key, value)
			if err != nil {
				return err
			}

			p.Name = name
		case "emails_for_notifications":
			emails, err := stringAttribute(key, value)
			if err != nil {
				return err
			}

			p.EmailsForNotifications = emails
		case "run_on_schedule":
			switch v := value.(type) {
			case bool:
				p.RunOnSchedule = v
			case string:
				p.RunOnSchedule = v == "True"
			default:
				return &AttributeError{Entity: "pipeline", Key: key, Err: ErrInvalidAttribute}
			}
		default:
			return &AttributeError{Entity: "pipeline", Key: key, Err: ErrUnknownAttribute}
		}
	}

	return nil
}

func stringAttribute(key string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	default:
		return "", &AttributeError{Key: key, Err: fmt.Errorf("%w: expected string, got %T", ErrInvalidAttribute, value)}
	}
}
