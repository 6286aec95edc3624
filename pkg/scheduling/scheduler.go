// Package scheduling starts schedule-driven pipelines from their cron schedules.
package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence"
	"github.com/robfig/cron/v3"
)

// DefaultSyncInterval is how often schedules are reloaded from persistence.
const DefaultSyncInterval = time.Minute

// Starter starts a pipeline run.
type Starter interface {
	StartPipeline(ctx context.Context, pipelineID string) (bool, error)
}

type entry struct {
	id         cron.EntryID
	pipelineID string
	spec       string
}

// Scheduler keeps one cron entry per stored schedule.
type Scheduler struct {
	persistence  persistence.Persistence
	starter      Starter
	logger       *slog.Logger
	cron         *cron.Cron
	syncInterval time.Duration

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]entry
}

type Option func(*Scheduler)

func WithSyncInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		s.syncInterval = interval
	}
}

func WithLocation(location *time.Location) Option {
	return func(s *Scheduler) {
		s.cron = newCron(s.logger, location)
	}
}

func NewScheduler(persistence persistence.Persistence, starter Starter, logger *slog.Logger, opts ...Option) *Scheduler {
	logger = logger.With("module", "scheduler")

	s := &Scheduler{
		persistence:  persistence,
		starter:      starter,
		logger:       logger,
		cron:         newCron(logger, time.UTC),
		syncInterval: DefaultSyncInterval,
		ctx:          context.Background(),
		entries:      make(map[string]entry),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func newCron(logger *slog.Logger, location *time.Location) *cron.Cron {
	cronLog := cronLogger{logger: logger}

	return cron.New(
		cron.WithLocation(location),
		cron.WithLogger(cronLog),
		cron.WithChain(
			cron.SkipIfStillRunning(cronLog),
			cron.Recover(cronLog),
		),
	)
}

// Start loads the schedules, begins firing them and reloads them every sync interval.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if err := s.Sync(ctx); err != nil {
		return err
	}

	s.cron.Schedule(cron.Every(s.syncInterval), cron.FuncJob(func() {
		if err := s.Sync(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Failed to sync schedules", "error", err)
		}
	}))

	s.logger.InfoContext(ctx, "Starting scheduler", "sync_interval", s.syncInterval)
	s.cron.Start()

	return nil
}

// Stop stops firing and waits for running pipeline starts, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping scheduler")

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync makes the cron entries match the stored schedules. Schedules with an
// invalid expression are logged and skipped.
func (s *Scheduler) Sync(ctx context.Context) error {
	schedules, err := s.persistence.ScheduleRepository().GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(schedules))

	for _, schedule := range schedules {
		seen[schedule.ID] = true

		current, exists := s.entries[schedule.ID]
		if exists && current.spec == schedule.Cron && current.pipelineID == schedule.PipelineID {
			continue
		}

		if exists {
			s.cron.Remove(current.id)
			delete(s.entries, schedule.ID)
		}

		if err := s.add(schedule); err != nil {
			s.logger.WarnContext(ctx, "Skipping invalid schedule",
				"schedule_id", schedule.ID, "pipeline_id", schedule.PipelineID, "cron", schedule.Cron, "error", err)
		}
	}

	for id, current := range s.entries {
		if !seen[id] {
			s.cron.Remove(current.id)
			delete(s.entries, id)
		}
	}

	return nil
}

func (s *Scheduler) add(schedule *models.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}

	pipelineID := schedule.PipelineID

	id, err := s.cron.AddFunc(schedule.Cron, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()

		if _, err := s.Fire(ctx, pipelineID); err != nil {
			s.logger.ErrorContext(ctx, "Scheduled pipeline start failed", "pipeline_id", pipelineID, "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.entries[schedule.ID] = entry{id: id, pipelineID: pipelineID, spec: schedule.Cron}

	s.logger.Debug("Added cron entry",
		"schedule_id", schedule.ID, "pipeline_id", pipelineID, "cron", schedule.Cron, "next", s.nextActivation(id))

	return nil
}

// Fire starts the pipeline when it runs on schedule and is not active.
func (s *Scheduler) Fire(ctx context.Context, pipelineID string) (bool, error) {
	pipeline, err := s.persistence.PipelineRepository().GetByID(ctx, pipelineID)
	if err != nil {
		return false, err
	}

	logger := s.logger.With("pipeline_id", pipelineID)

	if !pipeline.RunOnSchedule {
		logger.DebugContext(ctx, "Pipeline does not run on schedule")

		return false, nil
	}

	if pipeline.IsActive() {
		logger.InfoContext(ctx, "Pipeline still active, skipping scheduled run", "status", pipeline.Status)

		return false, nil
	}

	started, err := s.starter.StartPipeline(ctx, pipelineID)
	if err != nil {
		return false, err
	}

	logger.InfoContext(ctx, "Scheduled pipeline run", "started", started)

	return started, nil
}

// nextActivation returns when the cron entry fires next.
func (s *Scheduler) nextActivation(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Schedule.Next(time.Now().In(s.cron.Location()))
}

// Len returns the number of registered schedules.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// cronLogger routes robfig/cron logs to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
