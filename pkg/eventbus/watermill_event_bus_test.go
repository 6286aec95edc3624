package eventbus_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/jobline/pkg/channels/gochannel"
	"github.com/dukex/jobline/pkg/eventbus"
	"github.com/dukex/jobline/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(logger, pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newBus(t)
	ctx := t.Context()

	received := make(chan *events.WorkerSucceeded, 1)
	require.NoError(t, bus.Handle(events.WorkerSucceededEvent, func(_ context.Context, event any) error {
		received <- event.(*events.WorkerSucceeded)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	err := bus.Publish(ctx, "job-1", &events.WorkerSucceeded{
		BaseEvent: events.NewBaseEvent(events.WorkerSucceededEvent, "pipeline-1", "job-1"),
		TaskName:  "daily_extract_BQWorker_1",
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "job-1", event.JobID)
		assert.Equal(t, "pipeline-1", event.PipelineID)
		assert.Equal(t, "daily_extract_BQWorker_1", event.TaskName)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_IgnoresUnhandledTypes(t *testing.T) {
	bus := newBus(t)
	ctx := t.Context()

	var failed atomic.Int32

	done := make(chan struct{})

	require.NoError(t, bus.Handle(events.WorkerFailedEvent, func(_ context.Context, event any) error {
		failed.Add(1)
		close(done)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "job-1", &events.WorkerSucceeded{
		BaseEvent: events.NewBaseEvent(events.WorkerSucceededEvent, "p", "job-1"),
	}))
	require.NoError(t, bus.Publish(ctx, "job-1", &events.WorkerFailed{
		BaseEvent: events.NewBaseEvent(events.WorkerFailedEvent, "p", "job-1"),
		Error:     "boom",
	}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}

	assert.Equal(t, int32(1), failed.Load())
}

func TestWatermillEventBus_HandleUnknownType(t *testing.T) {
	bus := newBus(t)

	err := bus.Handle(events.EventType("workflow.triggered"), func(context.Context, any) error {
		return errors.New("unreachable")
	})
	assert.Error(t, err)
}
