package scheduling

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStarter struct {
	mu      sync.Mutex
	started []string
	err     error
}

func (f *fakeStarter) StartPipeline(_ context.Context, pipelineID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return false, f.err
	}

	f.started = append(f.started, pipelineID)

	return true, nil
}

func (f *fakeStarter) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.started...)
}

func setupScheduler(t *testing.T) (*Scheduler, *fakeStarter, *file.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	starter := &fakeStarter{}

	return NewScheduler(p, starter, slog.New(slog.DiscardHandler)), starter, p
}

func savePipeline(t *testing.T, p *file.Persistence, runOnSchedule bool, status models.PipelineStatus) *models.Pipeline {
	t.Helper()

	pipeline := models.NewPipeline("daily")
	pipeline.RunOnSchedule = runOnSchedule
	pipeline.Status = status
	require.NoError(t, p.PipelineRepository().Save(t.Context(), pipeline))

	return pipeline
}

func nextRun(scheduler *Scheduler, scheduleID string) (time.Time, bool) {
	scheduler.mu.Lock()
	current, exists := scheduler.entries[scheduleID]
	scheduler.mu.Unlock()

	if !exists {
		return time.Time{}, false
	}

	return scheduler.nextActivation(current.id), true
}

func TestScheduler_Fire(t *testing.T) {
	scheduler, starter, p := setupScheduler(t)
	ctx := t.Context()

	scheduled := savePipeline(t, p, true, models.PipelineStatusSucceeded)
	manual := savePipeline(t, p, false, models.PipelineStatusIdle)
	running := savePipeline(t, p, true, models.PipelineStatusRunning)
	stopping := savePipeline(t, p, true, models.PipelineStatusStopping)

	started, err := scheduler.Fire(ctx, scheduled.ID)
	require.NoError(t, err)
	assert.True(t, started)

	for _, pipeline := range []*models.Pipeline{manual, running, stopping} {
		started, err := scheduler.Fire(ctx, pipeline.ID)
		require.NoError(t, err)
		assert.False(t, started)
	}

	assert.Equal(t, []string{scheduled.ID}, starter.calls())
}

func TestScheduler_FireUnknownPipeline(t *testing.T) {
	scheduler, _, _ := setupScheduler(t)

	_, err := scheduler.Fire(t.Context(), "missing")
	assert.Error(t, err)
}

func TestScheduler_Sync(t *testing.T) {
	scheduler, _, p := setupScheduler(t)
	ctx := t.Context()

	pipeline := savePipeline(t, p, true, models.PipelineStatusIdle)
	repo := p.ScheduleRepository()

	morning := &models.Schedule{PipelineID: pipeline.ID, Cron: "0 6 * * *"}
	evening := &models.Schedule{PipelineID: pipeline.ID, Cron: "0 18 * * *"}
	broken := &models.Schedule{PipelineID: pipeline.ID, Cron: "at dawn"}

	for _, schedule := range []*models.Schedule{morning, evening, broken} {
		require.NoError(t, repo.Save(ctx, schedule))
	}

	require.NoError(t, scheduler.Sync(ctx))
	assert.Equal(t, 2, scheduler.Len())

	_, registered := nextRun(scheduler, broken.ID)
	assert.False(t, registered)

	next, registered := nextRun(scheduler, morning.ID)
	require.True(t, registered)
	assert.Equal(t, 6, next.Hour())
	assert.Equal(t, 0, next.Minute())

	morning.Cron = "30 7 * * *"
	require.NoError(t, repo.Save(ctx, morning))
	require.NoError(t, repo.Delete(ctx, evening.ID))

	require.NoError(t, scheduler.Sync(ctx))
	assert.Equal(t, 1, scheduler.Len())

	next, registered = nextRun(scheduler, morning.ID)
	require.True(t, registered)
	assert.Equal(t, 7, next.Hour())
	assert.Equal(t, 30, next.Minute())
}

func TestScheduler_StartAndStop(t *testing.T) {
	scheduler, _, p := setupScheduler(t)
	ctx := t.Context()

	pipeline := savePipeline(t, p, true, models.PipelineStatusIdle)
	require.NoError(t, p.ScheduleRepository().Save(ctx, &models.Schedule{PipelineID: pipeline.ID, Cron: "0 6 * * *"}))

	require.NoError(t, scheduler.Start(ctx))
	assert.Equal(t, 1, scheduler.Len())

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	assert.NoError(t, scheduler.Stop(stopCtx))
}
