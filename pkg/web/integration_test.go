//go:build integration

package web_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "test_jobline",
				"POSTGRES_USER":     "test_user",
				"POSTGRES_PASSWORD": "test_pass",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://test_user:test_pass@%s:%s/test_jobline?sslmode=disable", host, port.Port())
}

func TestPipelineLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dbURL := setupTestDB(t)

	persistence, err := postgresql.NewPersistence(t.Context(), slog.Default(), dbURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = persistence.Close(context.Background())
	})

	app, dispatcher := newTestApp(t, persistence)

	var pipeline pipelineBody

	t.Run("Import definition", func(t *testing.T) {
		status, data := doRequest(t, app, http.MethodPost, "/pipelines/import", definition)
		require.Equal(t, http.StatusCreated, status, string(data))

		pipeline = decode[pipelineBody](t, data)
		assert.True(t, pipeline.RunOnSchedule)
		assert.Len(t, pipeline.Schedules, 1)
	})

	t.Run("Edits refused while scheduled", func(t *testing.T) {
		status, _ := doRequest(t, app, http.MethodPatch, "/pipelines/"+pipeline.ID, map[string]any{"name": "renamed"})
		assert.Equal(t, http.StatusConflict, status)
	})

	var jobs []models.Job

	t.Run("Run to completion", func(t *testing.T) {
		status, data := doRequest(t, app, http.MethodPost, "/pipelines/"+pipeline.ID+"/start", nil)
		require.Equal(t, http.StatusAccepted, status, string(data))

		status, data = doRequest(t, app, http.MethodGet, "/pipelines/"+pipeline.ID+"/jobs", nil)
		require.Equal(t, http.StatusOK, status)

		jobs = decode[[]models.Job](t, data)
		require.Len(t, jobs, 2)

		byName := map[string]models.Job{}
		for _, job := range jobs {
			byName[job.Name] = job
		}

		extract, load := byName["extract"], byName["load"]
		assert.Equal(t, models.JobStatusRunning, extract.Status)
		assert.Equal(t, models.JobStatusWaiting, load.Status)

		status, _ = doRequest(t, app, http.MethodPost, "/jobs/"+extract.ID+"/workers/succeeded", nil)
		require.Equal(t, http.StatusNoContent, status)
		assert.Len(t, dispatcher.forJob(load.ID), 1)

		status, _ = doRequest(t, app, http.MethodPost, "/jobs/"+load.ID+"/workers/failed", nil)
		require.Equal(t, http.StatusNoContent, status)

		status, data = doRequest(t, app, http.MethodGet, "/pipelines/"+pipeline.ID, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, models.PipelineStatusSucceeded, decode[pipelineBody](t, data).Status)
	})

	t.Run("Delete after unscheduling", func(t *testing.T) {
		status, _ := doRequest(t, app, http.MethodPatch, "/pipelines/"+pipeline.ID+"/run_on_schedule", map[string]any{"run_on_schedule": false})
		require.Equal(t, http.StatusOK, status)

		status, _ = doRequest(t, app, http.MethodDelete, "/pipelines/"+pipeline.ID, nil)
		require.Equal(t, http.StatusNoContent, status)

		for _, job := range jobs {
			status, _ = doRequest(t, app, http.MethodGet, "/jobs/"+job.ID, nil)
			assert.Equal(t, http.StatusNotFound, status)
		}
	})
}
