// Package events defines event types and structures exchanged between the
// orchestrator, workers and notification consumers.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the single topic carrying every jobline event.
const Topic = "jobline.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Worker lifecycle events.
	WorkerDispatchedEvent       EventType = "worker.dispatched"
	WorkerSucceededEvent        EventType = "worker.succeeded"
	WorkerFailedEvent           EventType = "worker.failed"
	WorkerEnqueueRequestedEvent EventType = "worker.enqueue"

	// Pipeline lifecycle events.
	PipelineFinishedEvent EventType = "pipeline.finished"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	PipelineID string         `json:"pipeline_id"`
	JobID      string         `json:"job_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, pipelineID, jobID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		PipelineID: pipelineID,
		JobID:      jobID,
		Metadata:   make(map[string]any),
	}
}

// WorkerDispatched asks a worker runner to execute WorkerClass with Params
// no earlier than NotBefore.
type WorkerDispatched struct {
	BaseEvent

	TaskName    string         `json:"task_name"`
	WorkerClass string         `json:"worker_class"`
	Params      map[string]any `json:"params"`
	NotBefore   time.Time      `json:"not_before"`
}

func (w WorkerDispatched) GetType() EventType {
	return WorkerDispatchedEvent
}

// WorkerSucceeded reports a worker of JobID finished successfully.
type WorkerSucceeded struct {
	BaseEvent

	TaskName string `json:"task_name"`
}

func (w WorkerSucceeded) GetType() EventType {
	return WorkerSucceededEvent
}

// WorkerFailed reports a worker of JobID finished with an error.
type WorkerFailed struct {
	BaseEvent

	TaskName string `json:"task_name"`
	Error    string `json:"error"`
}

func (w WorkerFailed) GetType() EventType {
	return WorkerFailedEvent
}

// WorkerEnqueueRequested is sent by a running worker that fans out more work
// for its job.
type WorkerEnqueueRequested struct {
	BaseEvent

	WorkerClass string         `json:"worker_class"`
	Params      map[string]any `json:"params"`
	Delay       time.Duration  `json:"delay"`
}

func (w WorkerEnqueueRequested) GetType() EventType {
	return WorkerEnqueueRequestedEvent
}

// PipelineFinished announces a pipeline reached succeeded or failed.
type PipelineFinished struct {
	BaseEvent

	PipelineName string   `json:"pipeline_name"`
	Status       string   `json:"status"`
	Recipients   []string `json:"recipients"`
}

func (p PipelineFinished) GetType() EventType {
	return PipelineFinishedEvent
}
