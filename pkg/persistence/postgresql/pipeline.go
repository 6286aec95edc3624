package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence"
)

const selectPipeline = `
	SELECT
		id
	  , name
	  , emails_for_notifications
	  , status
	  , status_changed_at
	  , run_on_schedule
	  , created_at
	  , updated_at
	FROM pipelines
`

// PipelineRepository handles pipeline-related database operations.
type PipelineRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPipelineRepository creates a new pipeline repository.
func NewPipelineRepository(db *sql.DB, logger *slog.Logger) *PipelineRepository {
	return &PipelineRepository{db: db, logger: logger}
}

func (r *PipelineRepository) GetAll(ctx context.Context) ([]*models.Pipeline, error) {
	rows, err := r.db.QueryContext(ctx, selectPipeline+" ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query pipelines: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	pipelines := make([]*models.Pipeline, 0)

	for rows.Next() {
		pipeline, err := scanPipeline(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline: %w", err)
		}

		pipelines = append(pipelines, pipeline)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating pipelines: %w", err)
	}

	return pipelines, nil
}

func (r *PipelineRepository) GetByID(ctx context.Context, id string) (*models.Pipeline, error) {
	pipeline, err := scanPipeline(r.db.QueryRowContext(ctx, selectPipeline+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "pipeline", id, persistence.ErrPipelineNotFound)
		}

		return nil, persistence.NewEntityError("GetByID", "pipeline", id, err)
	}

	return pipeline, nil
}

// Save saves a pipeline to the database.
func (r *PipelineRepository) Save(ctx context.Context, pipeline *models.Pipeline) error {
	if err := stamp(&pipeline.ID, &pipeline.CreatedAt, &pipeline.UpdatedAt); err != nil {
		return err
	}

	query := `
		INSERT INTO pipelines (id, name, emails_for_notifications, status, status_changed_at,
			run_on_schedule, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			emails_for_notifications = EXCLUDED.emails_for_notifications,
			status = EXCLUDED.status,
			status_changed_at = EXCLUDED.status_changed_at,
			run_on_schedule = EXCLUDED.run_on_schedule,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		pipeline.ID,
		pipeline.Name,
		pipeline.EmailsForNotifications,
		pipeline.Status,
		nullTime(pipeline.StatusChangedAt),
		pipeline.RunOnSchedule,
		pipeline.CreatedAt,
		pipeline.UpdatedAt,
	)
	if err != nil {
		return persistence.NewEntityError("Save", "pipeline", pipeline.ID, err)
	}

	return nil
}

// Update locks the pipeline row for the duration of the mutation.
func (r *PipelineRepository) Update(ctx context.Context, id string, mutate persistence.PipelineMutation) (*models.Pipeline, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, r.logger, tx)

	pipeline, err := scanPipeline(tx.QueryRowContext(ctx, selectPipeline+" WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("Update", "pipeline", id, persistence.ErrPipelineNotFound)
		}

		return nil, persistence.NewEntityError("Update", "pipeline", id, err)
	}

	if err := mutate(pipeline); err != nil {
		return nil, err
	}

	pipeline.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE pipelines SET
			name = $2,
			emails_for_notifications = $3,
			status = $4,
			status_changed_at = $5,
			run_on_schedule = $6,
			updated_at = $7
		WHERE id = $1
	`,
		pipeline.ID,
		pipeline.Name,
		pipeline.EmailsForNotifications,
		pipeline.Status,
		nullTime(pipeline.StatusChangedAt),
		pipeline.RunOnSchedule,
		pipeline.UpdatedAt,
	)
	if err != nil {
		return nil, persistence.NewEntityError("Update", "pipeline", id, err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return pipeline, nil
}

func (r *PipelineRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM pipelines WHERE id = $1", id)
	if err != nil {
		return persistence.NewEntityError("Delete", "pipeline", id, err)
	}

	return nil
}

func scanPipeline(row scanner) (*models.Pipeline, error) {
	var (
		pipeline        models.Pipeline
		statusChangedAt sql.NullTime
	)

	err := row.Scan(
		&pipeline.ID,
		&pipeline.Name,
		&pipeline.EmailsForNotifications,
		&pipeline.Status,
		&statusChangedAt,
		&pipeline.RunOnSchedule,
		&pipeline.CreatedAt,
		&pipeline.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	pipeline.StatusChangedAt = timePtr(statusChangedAt)

	return &pipeline, nil
}
