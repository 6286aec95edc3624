package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/jobline/pkg/eventbus"
	"github.com/dukex/jobline/pkg/events"
	"github.com/dukex/jobline/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	keys   []string
	events []eventbus.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event eventbus.Event) error {
	p.keys = append(p.keys, key)
	p.events = append(p.events, event)

	return p.err
}

func finishedPipeline() *models.Pipeline {
	pipeline := models.NewPipeline("daily")
	pipeline.ID = "p1"
	pipeline.Status = models.PipelineStatusFailed
	pipeline.EmailsForNotifications = "ops@example.com data@example.com"

	return pipeline
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer

	notifier := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, notifier.NotifyPipelineFinished(t.Context(), finishedPipeline()))

	assert.Contains(t, buf.String(), "Pipeline finished")
	assert.Contains(t, buf.String(), "pipeline_id=p1")
	assert.Contains(t, buf.String(), "status=failed")
}

func TestEventNotifier(t *testing.T) {
	publisher := &recordingPublisher{}

	require.NoError(t, NewEventNotifier(publisher).NotifyPipelineFinished(t.Context(), finishedPipeline()))

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "p1", publisher.keys[0])

	event, ok := publisher.events[0].(*events.PipelineFinished)
	require.True(t, ok)
	assert.Equal(t, "daily", event.PipelineName)
	assert.Equal(t, "failed", event.Status)
	assert.Equal(t, []string{"ops@example.com", "data@example.com"}, event.Recipients)
}

func TestMulti_JoinsErrors(t *testing.T) {
	broken := &recordingPublisher{err: errors.New("broker down")}
	working := &recordingPublisher{}

	multi := Multi{NewEventNotifier(broken), NewEventNotifier(working)}

	err := multi.NotifyPipelineFinished(t.Context(), finishedPipeline())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Len(t, working.events, 1)
}
