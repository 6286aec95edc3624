package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/jobline/pkg/eventbus"
	"github.com/dukex/jobline/pkg/events"
)

// EventBusDispatcher publishes a worker.dispatched event per request. Events
// are keyed by job id.
type EventBusDispatcher struct {
	publisher eventbus.EventPublisher
	now       func() time.Time
}

func NewEventBusDispatcher(publisher eventbus.EventPublisher) *EventBusDispatcher {
	return &EventBusDispatcher{publisher: publisher, now: time.Now}
}

func (d *EventBusDispatcher) Dispatch(ctx context.Context, request Request) (TaskHandle, error) {
	handle := TaskHandle{
		TaskName:  request.TaskName,
		NotBefore: d.now().UTC().Add(request.Delay),
	}

	event := &events.WorkerDispatched{
		BaseEvent:   events.NewBaseEvent(events.WorkerDispatchedEvent, request.PipelineID, request.JobID),
		TaskName:    request.TaskName,
		WorkerClass: request.WorkerClass,
		Params:      request.Params,
		NotBefore:   handle.NotBefore,
	}

	if err := d.publisher.Publish(ctx, request.JobID, event); err != nil {
		return TaskHandle{}, fmt.Errorf("failed to publish task %s: %w", request.TaskName, err)
	}

	return handle, nil
}
