// Package notify delivers pipeline completion notices. Delivery failures
// never change pipeline state.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukex/jobline/pkg/eventbus"
	"github.com/dukex/jobline/pkg/events"
	"github.com/dukex/jobline/pkg/models"
)

type Notifier interface {
	NotifyPipelineFinished(ctx context.Context, pipeline *models.Pipeline) error
}

// LogNotifier writes one log entry per finished pipeline.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notify")}
}

func (n *LogNotifier) NotifyPipelineFinished(ctx context.Context, pipeline *models.Pipeline) error {
	n.logger.InfoContext(ctx, "Pipeline finished",
		"pipeline_id", pipeline.ID,
		"pipeline_name", pipeline.Name,
		"status", pipeline.Status,
		"recipients", pipeline.Recipients(),
	)

	return nil
}

// EventNotifier publishes pipeline.finished for mail senders and other
// consumers of the event bus.
type EventNotifier struct {
	publisher eventbus.EventPublisher
}

func NewEventNotifier(publisher eventbus.EventPublisher) *EventNotifier {
	return &EventNotifier{publisher: publisher}
}

func (n *EventNotifier) NotifyPipelineFinished(ctx context.Context, pipeline *models.Pipeline) error {
	return n.publisher.Publish(ctx, pipeline.ID, &events.PipelineFinished{
		BaseEvent:    events.NewBaseEvent(events.PipelineFinishedEvent, pipeline.ID, ""),
		PipelineName: pipeline.Name,
		Status:       string(pipeline.Status),
		Recipients:   pipeline.Recipients(),
	})
}

// Multi calls every notifier and joins their errors.
type Multi []Notifier

func (m Multi) NotifyPipelineFinished(ctx context.Context, pipeline *models.Pipeline) error {
	var errs []error

	for _, notifier := range m {
		if err := notifier.NotifyPipelineFinished(ctx, pipeline); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
