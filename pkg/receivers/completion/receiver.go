// Package completion feeds worker results back into the orchestrator.
package completion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/jobline/pkg/dispatch"
	"github.com/dukex/jobline/pkg/eventbus"
	"github.com/dukex/jobline/pkg/events"
	"github.com/dukex/jobline/pkg/params"
	"github.com/dukex/jobline/pkg/persistence"
)

// Orchestrator is the part of the orchestrator worker results drive.
type Orchestrator interface {
	WorkerSucceeded(ctx context.Context, jobID string) error
	WorkerFailed(ctx context.Context, jobID string) error
	Enqueue(
		ctx context.Context,
		jobID, workerClass string,
		values map[string]params.Value,
		delay time.Duration,
	) (dispatch.TaskHandle, bool, error)
}

// Receiver handles worker events published on the event bus.
type Receiver struct {
	subscriber   eventbus.EventSubscriber
	orchestrator Orchestrator
	logger       *slog.Logger
}

func NewReceiver(subscriber eventbus.EventSubscriber, orchestrator Orchestrator, logger *slog.Logger) *Receiver {
	return &Receiver{
		subscriber:   subscriber,
		orchestrator: orchestrator,
		logger:       logger.With("module", "completion_receiver"),
	}
}

// Start registers the worker event handlers and begins consuming.
func (r *Receiver) Start(ctx context.Context) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.WorkerSucceededEvent:        r.handleSucceeded,
		events.WorkerFailedEvent:           r.handleFailed,
		events.WorkerEnqueueRequestedEvent: r.handleEnqueue,
	}

	for eventType, handler := range handlers {
		if err := r.subscriber.Handle(eventType, handler); err != nil {
			return fmt.Errorf("failed to register %s handler: %w", eventType, err)
		}
	}

	r.logger.InfoContext(ctx, "Starting completion receiver")

	return r.subscriber.Subscribe(ctx)
}

func (r *Receiver) handleSucceeded(ctx context.Context, event any) error {
	succeeded, ok := event.(*events.WorkerSucceeded)
	if !ok {
		return fmt.Errorf("unexpected %T for %s", event, events.WorkerSucceededEvent)
	}

	r.logger.DebugContext(ctx, "Worker succeeded", "job_id", succeeded.JobID, "task_name", succeeded.TaskName)

	return r.ignoreUnknownJob(ctx, succeeded.JobID, r.orchestrator.WorkerSucceeded(ctx, succeeded.JobID))
}

func (r *Receiver) handleFailed(ctx context.Context, event any) error {
	failed, ok := event.(*events.WorkerFailed)
	if !ok {
		return fmt.Errorf("unexpected %T for %s", event, events.WorkerFailedEvent)
	}

	r.logger.InfoContext(ctx, "Worker failed", "job_id", failed.JobID, "task_name", failed.TaskName, "error", failed.Error)

	return r.ignoreUnknownJob(ctx, failed.JobID, r.orchestrator.WorkerFailed(ctx, failed.JobID))
}

func (r *Receiver) handleEnqueue(ctx context.Context, event any) error {
	request, ok := event.(*events.WorkerEnqueueRequested)
	if !ok {
		return fmt.Errorf("unexpected %T for %s", event, events.WorkerEnqueueRequestedEvent)
	}

	handle, enqueued, err := r.orchestrator.Enqueue(ctx, request.JobID, request.WorkerClass, request.Params, request.Delay)
	if err != nil {
		return r.ignoreUnknownJob(ctx, request.JobID, err)
	}

	if !enqueued {
		r.logger.WarnContext(ctx, "Enqueue refused, job is not running",
			"job_id", request.JobID, "worker_class", request.WorkerClass)

		return nil
	}

	r.logger.DebugContext(ctx, "Worker enqueued", "job_id", request.JobID, "task_name", handle.TaskName)

	return nil
}

// ignoreUnknownJob drops results for deleted jobs so they are not redelivered forever.
func (r *Receiver) ignoreUnknownJob(ctx context.Context, jobID string, err error) error {
	if err != nil && persistence.IsNotFound(err) {
		r.logger.WarnContext(ctx, "Worker result for unknown job", "job_id", jobID)

		return nil
	}

	return err
}
