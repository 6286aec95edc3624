package dispatch

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/dukex/jobline/pkg/eventbus"
	"github.com/dukex/jobline/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTaskName(t *testing.T) {
	name := TaskName("daily report", "extract/load", "BQ.Worker")

	assert.Regexp(t, regexp.MustCompile(`^daily-report_extract-load_BQ-Worker_[0-9a-f-]{36}$`), name)
	assert.NotEqual(t, name, TaskName("daily report", "extract/load", "BQ.Worker"))
}

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

func TestEventBusDispatcher_Dispatch(t *testing.T) {
	publisher := &publisherMock{}
	dispatcher := NewEventBusDispatcher(publisher)
	dispatcher.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	publisher.On("Publish", mock.Anything, "job-1", mock.MatchedBy(func(event *events.WorkerDispatched) bool {
		return event.TaskName == "t1" &&
			event.WorkerClass == "BQWorker" &&
			event.PipelineID == "p1" &&
			event.Params["table"] == "events"
	})).Return(nil)

	handle, err := dispatcher.Dispatch(t.Context(), Request{
		TaskName:    "t1",
		PipelineID:  "p1",
		JobID:       "job-1",
		WorkerClass: "BQWorker",
		Params:      map[string]any{"table": "events"},
		Delay:       time.Minute,
	})
	require.NoError(t, err)

	assert.Equal(t, "t1", handle.TaskName)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC), handle.NotBefore)
	publisher.AssertExpectations(t)
}

func TestEventBusDispatcher_PublishFailure(t *testing.T) {
	publisher := &publisherMock{}
	publisher.On("Publish", mock.Anything, "job-1", mock.Anything).Return(errors.New("broker down"))

	_, err := NewEventBusDispatcher(publisher).Dispatch(t.Context(), Request{TaskName: "t1", JobID: "job-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
