package completion

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/jobline/pkg/channels/gochannel"
	"github.com/dukex/jobline/pkg/dispatch"
	"github.com/dukex/jobline/pkg/eventbus"
	"github.com/dukex/jobline/pkg/events"
	"github.com/dukex/jobline/pkg/params"
	"github.com/dukex/jobline/pkg/persistence"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOrchestrator struct {
	mock.Mock
}

func (m *mockOrchestrator) WorkerSucceeded(ctx context.Context, jobID string) error {
	return m.Called(ctx, jobID).Error(0)
}

func (m *mockOrchestrator) WorkerFailed(ctx context.Context, jobID string) error {
	return m.Called(ctx, jobID).Error(0)
}

func (m *mockOrchestrator) Enqueue(
	ctx context.Context,
	jobID, workerClass string,
	values map[string]params.Value,
	delay time.Duration,
) (dispatch.TaskHandle, bool, error) {
	args := m.Called(ctx, jobID, workerClass, values, delay)

	return args.Get(0).(dispatch.TaskHandle), args.Bool(1), args.Error(2)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(discardLogger()))
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(discardLogger(), pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestReceiver_WorkerEvents(t *testing.T) {
	bus := newBus(t)
	ctx := t.Context()

	orchestrator := &mockOrchestrator{}
	done := make(chan string, 3)

	orchestrator.On("WorkerSucceeded", mock.Anything, "job-1").
		Run(func(mock.Arguments) { done <- "succeeded" }).Return(nil).Once()
	orchestrator.On("WorkerFailed", mock.Anything, "job-2").
		Run(func(mock.Arguments) { done <- "failed" }).Return(nil).Once()
	orchestrator.On("Enqueue", mock.Anything, "job-3", "BQWorker", map[string]params.Value{"table": "events"}, 5*time.Second).
		Run(func(mock.Arguments) { done <- "enqueued" }).
		Return(dispatch.TaskHandle{TaskName: "t"}, true, nil).Once()

	require.NoError(t, NewReceiver(bus, orchestrator, discardLogger()).Start(ctx))

	require.NoError(t, bus.Publish(ctx, "job-1", &events.WorkerSucceeded{
		BaseEvent: events.NewBaseEvent(events.WorkerSucceededEvent, "p1", "job-1"),
		TaskName:  "daily_extract_BQWorker_1",
	}))
	require.NoError(t, bus.Publish(ctx, "job-2", &events.WorkerFailed{
		BaseEvent: events.NewBaseEvent(events.WorkerFailedEvent, "p1", "job-2"),
		Error:     "boom",
	}))
	require.NoError(t, bus.Publish(ctx, "job-3", &events.WorkerEnqueueRequested{
		BaseEvent:   events.NewBaseEvent(events.WorkerEnqueueRequestedEvent, "p1", "job-3"),
		WorkerClass: "BQWorker",
		Params:      map[string]any{"table": "events"},
		Delay:       5 * time.Second,
	}))

	var seen []string

	for range 3 {
		select {
		case outcome := <-done:
			seen = append(seen, outcome)
		case <-time.After(5 * time.Second):
			t.Fatal("worker event was not handled")
		}
	}

	assert.ElementsMatch(t, []string{"succeeded", "failed", "enqueued"}, seen)
	orchestrator.AssertExpectations(t)
}

func TestReceiver_UnknownJobIsDropped(t *testing.T) {
	orchestrator := &mockOrchestrator{}
	orchestrator.On("WorkerSucceeded", mock.Anything, "gone").
		Return(persistence.NewEntityError("Update", "job", "gone", persistence.ErrJobNotFound))

	receiver := NewReceiver(newBus(t), orchestrator, discardLogger())

	err := receiver.handleSucceeded(t.Context(), &events.WorkerSucceeded{
		BaseEvent: events.NewBaseEvent(events.WorkerSucceededEvent, "p1", "gone"),
	})
	assert.NoError(t, err)
}

func TestReceiver_EnqueueRefusedIsAcked(t *testing.T) {
	orchestrator := &mockOrchestrator{}
	orchestrator.On("Enqueue", mock.Anything, "job-1", "BQWorker", mock.Anything, time.Duration(0)).
		Return(dispatch.TaskHandle{}, false, nil)

	receiver := NewReceiver(newBus(t), orchestrator, discardLogger())

	err := receiver.handleEnqueue(t.Context(), &events.WorkerEnqueueRequested{
		BaseEvent:   events.NewBaseEvent(events.WorkerEnqueueRequestedEvent, "p1", "job-1"),
		WorkerClass: "BQWorker",
	})
	assert.NoError(t, err)
}

func TestReceiver_WrongPayloadType(t *testing.T) {
	receiver := NewReceiver(newBus(t), &mockOrchestrator{}, discardLogger())

	err := receiver.handleFailed(t.Context(), &events.WorkerSucceeded{})
	assert.Error(t, err)
}

func TestQueueConsumer_AppliesReports(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := t.Context()

	orchestrator := &mockOrchestrator{}
	orchestrator.On("WorkerSucceeded", mock.Anything, "job-1").Return(nil).Once()
	orchestrator.On("WorkerFailed", mock.Anything, "job-2").Return(nil).Once()

	for _, report := range []Report{
		{JobID: "job-1", Outcome: OutcomeSucceeded},
		{JobID: "job-2", Outcome: OutcomeFailed, Error: "timeout"},
		{JobID: "job-3", Outcome: "lost"},
	} {
		body, err := json.Marshal(report)
		require.NoError(t, err)
		require.NoError(t, client.RPush(ctx, "test:completions", body).Err())
	}

	require.NoError(t, client.RPush(ctx, "test:completions", "not json").Err())

	consumer := NewQueueConsumer(client, "test:completions", orchestrator, discardLogger())
	consumer.timeout = 50 * time.Millisecond
	consumer.Start(ctx)
	t.Cleanup(consumer.Stop)

	assert.Eventually(t, func() bool {
		length, err := client.LLen(ctx, "test:completions").Result()

		return err == nil && length == 0
	}, 5*time.Second, 10*time.Millisecond)

	consumer.Stop()
	orchestrator.AssertExpectations(t)
}

func TestQueueConsumer_ApplyWrapsErrors(t *testing.T) {
	orchestrator := &mockOrchestrator{}
	orchestrator.On("WorkerFailed", mock.Anything, "job-1").Return(assert.AnError)

	consumer := NewQueueConsumer(nil, "", orchestrator, discardLogger())
	assert.Equal(t, DefaultQueue, consumer.queue)

	err := consumer.Apply(t.Context(), Report{JobID: "job-1", Outcome: OutcomeFailed})
	assert.ErrorIs(t, err, assert.AnError)
}
