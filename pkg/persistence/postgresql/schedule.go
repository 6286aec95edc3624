package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence"
)

const selectSchedule = `
	SELECT id, pipeline_id, cron, created_at, updated_at
	FROM schedules
`

// ScheduleRepository handles schedule-related database operations.
type ScheduleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sql.DB, logger *slog.Logger) *ScheduleRepository {
	return &ScheduleRepository{db: db, logger: logger}
}

func (r *ScheduleRepository) GetAll(ctx context.Context) ([]*models.Schedule, error) {
	return r.query(ctx, "GetAll", selectSchedule+" ORDER BY created_at ASC, id ASC")
}

func (r *ScheduleRepository) GetByPipeline(ctx context.Context, pipelineID string) ([]*models.Schedule, error) {
	return r.query(ctx, "GetByPipeline", selectSchedule+" WHERE pipeline_id = $1 ORDER BY created_at ASC, id ASC", pipelineID)
}

func (r *ScheduleRepository) query(ctx context.Context, op, query string, args ...any) ([]*models.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewEntityError(op, "schedule", "", err)
	}
	defer closeRows(ctx, r.logger, rows)

	schedules := make([]*models.Schedule, 0)

	for rows.Next() {
		var schedule models.Schedule

		err := rows.Scan(&schedule.ID, &schedule.PipelineID, &schedule.Cron, &schedule.CreatedAt, &schedule.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}

		schedules = append(schedules, &schedule)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}

	return schedules, nil
}

// Save saves or updates a schedule in the database.
func (r *ScheduleRepository) Save(ctx context.Context, schedule *models.Schedule) error {
	if err := stamp(&schedule.ID, &schedule.CreatedAt, &schedule.UpdatedAt); err != nil {
		return err
	}

	query := `
		INSERT INTO schedules (id, pipeline_id, cron, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			cron = EXCLUDED.cron,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.PipelineID,
		schedule.Cron,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to save schedule", "schedule_id", schedule.ID, "error", err)

		return persistence.NewEntityError("Save", "schedule", schedule.ID, err)
	}

	return nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = $1", id)
	if err != nil {
		return persistence.NewEntityError("Delete", "schedule", id, err)
	}

	return nil
}

func (r *ScheduleRepository) DeleteByPipeline(ctx context.Context, pipelineID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM schedules WHERE pipeline_id = $1", pipelineID)
	if err != nil {
		return persistence.NewEntityError("DeleteByPipeline", "schedule", pipelineID, err)
	}

	return nil
}
