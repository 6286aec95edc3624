package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypes(t *testing.T) {
	assert.Equal(t, WorkerDispatchedEvent, WorkerDispatched{}.GetType())
	assert.Equal(t, WorkerSucceededEvent, WorkerSucceeded{}.GetType())
	assert.Equal(t, WorkerFailedEvent, WorkerFailed{}.GetType())
	assert.Equal(t, WorkerEnqueueRequestedEvent, WorkerEnqueueRequested{}.GetType())
	assert.Equal(t, PipelineFinishedEvent, PipelineFinished{}.GetType())
}

func TestNewBaseEvent(t *testing.T) {
	event := NewBaseEvent(WorkerSucceededEvent, "p1", "j1")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, WorkerSucceededEvent, event.Type)
	assert.Equal(t, "p1", event.PipelineID)
	assert.Equal(t, "j1", event.JobID)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Minute)
	assert.NotNil(t, event.Metadata)
}

func TestWorkerDispatched_JSON(t *testing.T) {
	event := &WorkerDispatched{
		BaseEvent:   NewBaseEvent(WorkerDispatchedEvent, "p1", "j1"),
		TaskName:    "daily_extract_BQWorker_0198",
		WorkerClass: "BQWorker",
		Params:      map[string]any{"table": "events"},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"worker.dispatched"`)
	assert.Contains(t, string(data), `"job_id":"j1"`)
	assert.Contains(t, string(data), `"worker_class":"BQWorker"`)
}
