//go:build integration

package kafka_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/jobline/pkg/channels/kafka"
	"github.com/dukex/jobline/pkg/eventbus"
	"github.com/dukex/jobline/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func setupBrokers(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := kafkacontainer.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafkacontainer.WithClusterID("test-cluster"),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, testcontainers.TerminateContainer(container))
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	return brokers[0]
}

func TestCreateChannel_DeliversEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	t.Setenv("KAFKA_BROKERS", setupBrokers(t))

	logger := slog.New(slog.DiscardHandler)

	pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "integration")
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(logger, pub, sub)

	t.Cleanup(func() {
		assert.NoError(t, bus.Close())
	})

	received := make(chan *events.WorkerSucceeded, 1)

	require.NoError(t, bus.Handle(events.WorkerSucceededEvent, func(_ context.Context, event any) error {
		if succeeded, ok := event.(*events.WorkerSucceeded); ok {
			received <- succeeded
		}

		return nil
	}))

	ctx, cancel := context.WithTimeout(t.Context(), time.Minute)
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	event := &events.WorkerSucceeded{
		BaseEvent: events.NewBaseEvent(events.WorkerSucceededEvent, "pipeline-1", "job-1"),
		TaskName:  "daily_extract_BQWorker_1",
	}
	require.NoError(t, bus.Publish(ctx, "job-1", event))

	select {
	case got := <-received:
		assert.Equal(t, "job-1", got.JobID)
		assert.Equal(t, "daily_extract_BQWorker_1", got.TaskName)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}
