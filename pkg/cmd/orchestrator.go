package cmd

import (
	"context"
	"log/slog"

	"github.com/dukex/jobline/pkg/dispatch"
	"github.com/dukex/jobline/pkg/eventbus"
	"github.com/dukex/jobline/pkg/notify"
	"github.com/dukex/jobline/pkg/orchestrator"
	"github.com/dukex/jobline/pkg/otelhelper"
	"github.com/dukex/jobline/pkg/persistence"
)

// NewOrchestrator wires the orchestrator with log and event-bus notifiers.
// With tracing enabled spans are exported over OTLP/HTTP.
func NewOrchestrator(
	ctx context.Context,
	logger *slog.Logger,
	serviceName string,
	p persistence.Persistence,
	dispatcher dispatch.Dispatcher,
	bus eventbus.EventBus,
	tracing bool,
) *orchestrator.Orchestrator {
	notifier := notify.Multi{
		notify.NewLogNotifier(logger),
		notify.NewEventNotifier(bus),
	}

	opts := []orchestrator.Option{orchestrator.WithLogger(logger)}

	if tracing {
		tracer, err := otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize tracer, continuing without tracing", "error", err)
		} else {
			opts = append(opts, orchestrator.WithTracer(tracer))
		}
	}

	return orchestrator.New(p, dispatcher, notifier, opts...)
}
