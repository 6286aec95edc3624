package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence"
)

const selectJob = `
	SELECT
		id
	  , pipeline_id
	  , name
	  , status
	  , status_changed_at
	  , worker_class
	  , enqueued_workers_count
	  , succeeded_workers_count
	  , failed_workers_count
	  , created_at
	  , updated_at
	FROM jobs
`

// JobRepository handles job-related database operations.
type JobRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sql.DB, logger *slog.Logger) *JobRepository {
	return &JobRepository{db: db, logger: logger}
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	job, err := scanJob(r.db.QueryRowContext(ctx, selectJob+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "job", id, persistence.ErrJobNotFound)
		}

		return nil, persistence.NewEntityError("GetByID", "job", id, err)
	}

	return job, nil
}

func (r *JobRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.Job, error) {
	return r.query(ctx, "GetByIDs", selectJob+" WHERE id = ANY($1) ORDER BY created_at ASC, id ASC", pq.Array(ids))
}

func (r *JobRepository) GetByPipeline(ctx context.Context, pipelineID string) ([]*models.Job, error) {
	return r.query(ctx, "GetByPipeline", selectJob+" WHERE pipeline_id = $1 ORDER BY created_at ASC, id ASC", pipelineID)
}

func (r *JobRepository) GetByStatus(ctx context.Context, pipelineID string, statuses ...models.JobStatus) ([]*models.Job, error) {
	values := make([]string, len(statuses))
	for i, status := range statuses {
		values[i] = string(status)
	}

	return r.query(ctx, "GetByStatus",
		selectJob+" WHERE pipeline_id = $1 AND status = ANY($2) ORDER BY created_at ASC, id ASC",
		pipelineID, pq.Array(values))
}

func (r *JobRepository) query(ctx context.Context, op, query string, args ...any) ([]*models.Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewEntityError(op, "job", "", err)
	}
	defer closeRows(ctx, r.logger, rows)

	jobs := make([]*models.Job, 0)

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}

		jobs = append(jobs, job)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

// Save saves a job to the database.
func (r *JobRepository) Save(ctx context.Context, job *models.Job) error {
	if err := stamp(&job.ID, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return err
	}

	query := `
		INSERT INTO jobs (id, pipeline_id, name, status, status_changed_at, worker_class,
			enqueued_workers_count, succeeded_workers_count, failed_workers_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			status_changed_at = EXCLUDED.status_changed_at,
			worker_class = EXCLUDED.worker_class,
			enqueued_workers_count = EXCLUDED.enqueued_workers_count,
			succeeded_workers_count = EXCLUDED.succeeded_workers_count,
			failed_workers_count = EXCLUDED.failed_workers_count,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.PipelineID,
		job.Name,
		job.Status,
		nullTime(job.StatusChangedAt),
		job.WorkerClass,
		job.EnqueuedWorkersCount,
		job.SucceededWorkersCount,
		job.FailedWorkersCount,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return persistence.NewEntityError("Save", "job", job.ID, err)
	}

	return nil
}

// Update locks the job row for the duration of the mutation, so concurrent
// worker callbacks on the same job are applied one at a time.
func (r *JobRepository) Update(ctx context.Context, id string, mutate persistence.JobMutation) (*models.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, r.logger, tx)

	job, err := scanJob(tx.QueryRowContext(ctx, selectJob+" WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("Update", "job", id, persistence.ErrJobNotFound)
		}

		return nil, persistence.NewEntityError("Update", "job", id, err)
	}

	if err := mutate(job); err != nil {
		return nil, err
	}

	job.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE jobs SET
			name = $2,
			status = $3,
			status_changed_at = $4,
			worker_class = $5,
			enqueued_workers_count = $6,
			succeeded_workers_count = $7,
			failed_workers_count = $8,
			updated_at = $9
		WHERE id = $1
	`,
		job.ID,
		job.Name,
		job.Status,
		nullTime(job.StatusChangedAt),
		job.WorkerClass,
		job.EnqueuedWorkersCount,
		job.SucceededWorkersCount,
		job.FailedWorkersCount,
		job.UpdatedAt,
	)
	if err != nil {
		return nil, persistence.NewEntityError("Update", "job", id, err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return job, nil
}

func (r *JobRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = $1", id)
	if err != nil {
		return persistence.NewEntityError("Delete", "job", id, err)
	}

	return nil
}

func scanJob(row scanner) (*models.Job, error) {
	var (
		job             models.Job
		statusChangedAt sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&job.PipelineID,
		&job.Name,
		&job.Status,
		&statusChangedAt,
		&job.WorkerClass,
		&job.EnqueuedWorkersCount,
		&job.SucceededWorkersCount,
		&job.FailedWorkersCount,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.StatusChangedAt = timePtr(statusChangedAt)

	return &job, nil
}
