package models

import (
	"time"
)

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusWaiting   JobStatus = "waiting"
	JobStatusRunning   JobStatus = "running"
	JobStatusStopping  JobStatus = "stopping"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// IsFinished reports whether the status is succeeded or failed.
func (s JobStatus) IsFinished() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// IsTerminal reports whether the status counts as settled for pipeline aggregation.
func (s JobStatus) IsTerminal() bool {
	return s.IsFinished() || s == JobStatusIdle
}

// CanGetReady reports whether a job in this status may be prepared for a new run.
func (s JobStatus) CanGetReady() bool {
	return s.IsTerminal()
}

// AcceptsWorkerResults reports whether worker completions still count toward this job.
func (s JobStatus) AcceptsWorkerResults() bool {
	return s == JobStatusRunning || s == JobStatusStopping
}

// Job is a unit of work that dispatches one or more workers and aggregates their outcomes.
type Job struct {
	ID                    string     `json:"id"`
	PipelineID            string     `json:"pipeline_id"             validate:"required"`
	Name                  string     `json:"name"                    validate:"required,max=255"`
	Status                JobStatus  `json:"status"                  validate:"required,oneof=idle waiting running stopping succeeded failed"`
	StatusChangedAt       *time.Time `json:"status_changed_at,omitempty"`
	WorkerClass           string     `json:"worker_class"            validate:"required,max=255"`
	EnqueuedWorkersCount  int        `json:"enqueued_workers_count"  validate:"min=0"`
	SucceededWorkersCount int        `json:"succeeded_workers_count" validate:"min=0"`
	FailedWorkersCount    int        `json:"failed_workers_count"    validate:"min=0"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// NewJob returns an idle job attached to a pipeline.
func NewJob(pipelineID, name, workerClass string) *Job {
	return &Job{
		PipelineID:  pipelineID,
		Name:        name,
		WorkerClass: workerClass,
		Status:      JobStatusIdle,
	}
}

func (j *Job) FinishedWorkersCount() int {
	return j.SucceededWorkersCount + j.FailedWorkersCount
}

// AllWorkersFinished reports whether every enqueued worker has reported back.
func (j *Job) AllWorkersFinished() bool {
	return j.FinishedWorkersCount() >= j.EnqueuedWorkersCount
}

func (j *Job) ResetCounters() {
	j.EnqueuedWorkersCount = 0
	j.SucceededWorkersCount = 0
	j.FailedWorkersCount = 0
}

func (j *Job) SetStatus(status JobStatus, now time.Time) {
	j.Status = status
	j.StatusChangedAt = &now
}

// AssignAttributes updates the allow-listed scalar fields from an untyped map.
func (j *Job) AssignAttributes(attributes map[string]any) error {
	for key, value := range attributes {
		switch key {
		case "id", "params", "start_conditions", "hash_start_conditions":
			continue
		case "name":
			name, err := stringAttribute(key, value)
			if err != nil {
				return err
			}

			j.Name = name
		case "worker_class":
			workerClass, err := stringAttribute(key, value)
			if err != nil {
				return err
			}

			j.WorkerClass = workerClass
		default:
			return &AttributeError{Entity: "job", Key: key, Err: ErrUnknownAttribute}
		}
	}

	return nil
}
