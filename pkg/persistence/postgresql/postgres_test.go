package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"start_conditions", "params", "schedules", "jobs", "pipelines", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("jobline_test"),
			postgres.WithUsername("jobline"),
			postgres.WithPassword("jobline"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	persistence, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = persistence.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return persistence, ctx
}

func TestPostgres_PipelineGraphRoundTrip(t *testing.T) {
	p, ctx := setupTestDB(t)

	require.NoError(t, p.HealthCheck(ctx))

	pipeline := models.NewPipeline("nightly")
	pipeline.EmailsForNotifications = "ops@example.com"
	require.NoError(t, p.PipelineRepository().Save(ctx, pipeline))

	extract := models.NewJob(pipeline.ID, "extract", "BQWorker")
	load := models.NewJob(pipeline.ID, "load", "GCSWorker")
	require.NoError(t, p.JobRepository().Save(ctx, extract))
	require.NoError(t, p.JobRepository().Save(ctx, load))

	edge := &models.StartCondition{JobID: load.ID, PrecedingJobID: extract.ID, Condition: models.ConditionSuccess}
	require.NoError(t, p.StartConditionRepository().Save(ctx, edge))

	param := &models.Param{Name: "dataset", Type: models.ParamTypeString, Value: "raw", Scope: models.PipelineScope(pipeline.ID)}
	require.NoError(t, p.ParamRepository().Save(ctx, param))

	schedule := &models.Schedule{PipelineID: pipeline.ID, Cron: "0 6 * * *"}
	require.NoError(t, p.ScheduleRepository().Save(ctx, schedule))

	loaded, err := p.PipelineRepository().GetByID(ctx, pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", loaded.EmailsForNotifications)

	jobs, err := p.JobRepository().GetByPipeline(ctx, pipeline.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	edges, err := p.StartConditionRepository().GetByPipeline(ctx, pipeline.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, models.ConditionSuccess, edges[0].Condition)

	params, err := p.ParamRepository().GetByScope(ctx, models.PipelineScope(pipeline.ID))
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, models.PipelineScope(pipeline.ID), params[0].Scope)

	// Destroy in application order.
	require.NoError(t, p.ScheduleRepository().DeleteByPipeline(ctx, pipeline.ID))
	require.NoError(t, p.StartConditionRepository().DeleteByJob(ctx, load.ID))
	require.NoError(t, p.JobRepository().Delete(ctx, extract.ID))
	require.NoError(t, p.JobRepository().Delete(ctx, load.ID))
	require.NoError(t, p.ParamRepository().DeleteByScope(ctx, models.PipelineScope(pipeline.ID)))
	require.NoError(t, p.PipelineRepository().Delete(ctx, pipeline.ID))
}

func TestPostgres_ConcurrentJobUpdates(t *testing.T) {
	p, ctx := setupTestDB(t)

	pipeline := models.NewPipeline("fan-in")
	require.NoError(t, p.PipelineRepository().Save(ctx, pipeline))

	job := models.NewJob(pipeline.ID, "fan", "W")
	job.Status = models.JobStatusRunning
	job.EnqueuedWorkersCount = 10
	require.NoError(t, p.JobRepository().Save(ctx, job))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		finalized int
	)

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := p.JobRepository().Update(ctx, job.ID, func(j *models.Job) error {
				j.SucceededWorkersCount++

				if j.AllWorkersFinished() {
					j.Status = models.JobStatusSucceeded

					mu.Lock()
					finalized++
					mu.Unlock()
				}

				return nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	loaded, err := p.JobRepository().GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, loaded.SucceededWorkersCount)
	assert.Equal(t, models.JobStatusSucceeded, loaded.Status)
	assert.Equal(t, 1, finalized)
}
