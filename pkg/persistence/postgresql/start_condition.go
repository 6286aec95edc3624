package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence"
)

const selectStartCondition = `
	SELECT
		sc.id
	  , sc.job_id
	  , sc.preceding_job_id
	  , sc.condition
	  , sc.created_at
	FROM start_conditions sc
`

// StartConditionRepository handles start condition database operations.
type StartConditionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStartConditionRepository creates a new start condition repository.
func NewStartConditionRepository(db *sql.DB, logger *slog.Logger) *StartConditionRepository {
	return &StartConditionRepository{db: db, logger: logger}
}

func (r *StartConditionRepository) GetByJob(ctx context.Context, jobID string) ([]*models.StartCondition, error) {
	return r.query(ctx, "GetByJob",
		selectStartCondition+" WHERE sc.job_id = $1 ORDER BY sc.created_at ASC, sc.id ASC", jobID)
}

func (r *StartConditionRepository) GetByPrecedingJob(ctx context.Context, jobID string) ([]*models.StartCondition, error) {
	return r.query(ctx, "GetByPrecedingJob",
		selectStartCondition+" WHERE sc.preceding_job_id = $1 ORDER BY sc.created_at ASC, sc.id ASC", jobID)
}

func (r *StartConditionRepository) GetByPipeline(ctx context.Context, pipelineID string) ([]*models.StartCondition, error) {
	return r.query(ctx, "GetByPipeline",
		selectStartCondition+` JOIN jobs j ON j.id = sc.job_id
		WHERE j.pipeline_id = $1 ORDER BY sc.created_at ASC, sc.id ASC`, pipelineID)
}

func (r *StartConditionRepository) query(ctx context.Context, op, query string, args ...any) ([]*models.StartCondition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewEntityError(op, "start condition", "", err)
	}
	defer closeRows(ctx, r.logger, rows)

	conditions := make([]*models.StartCondition, 0)

	for rows.Next() {
		var sc models.StartCondition

		err := rows.Scan(&sc.ID, &sc.JobID, &sc.PrecedingJobID, &sc.Condition, &sc.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan start condition: %w", err)
		}

		conditions = append(conditions, &sc)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating start conditions: %w", err)
	}

	return conditions, nil
}

// Save saves a start condition, replacing the condition of an existing
// (job, preceding job) pair.
func (r *StartConditionRepository) Save(ctx context.Context, startCondition *models.StartCondition) error {
	if err := stamp(&startCondition.ID, &startCondition.CreatedAt, nil); err != nil {
		return err
	}

	query := `
		INSERT INTO start_conditions (id, job_id, preceding_job_id, condition, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			condition = EXCLUDED.condition
	`

	_, err := r.db.ExecContext(ctx, query,
		startCondition.ID,
		startCondition.JobID,
		startCondition.PrecedingJobID,
		startCondition.Condition,
		startCondition.CreatedAt,
	)
	if err != nil {
		return persistence.NewEntityError("Save", "start condition", startCondition.ID, err)
	}

	return nil
}

func (r *StartConditionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM start_conditions WHERE id = $1", id)
	if err != nil {
		return persistence.NewEntityError("Delete", "start condition", id, err)
	}

	return nil
}

func (r *StartConditionRepository) DeleteByJob(ctx context.Context, jobID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM start_conditions WHERE job_id = $1 OR preceding_job_id = $1", jobID)
	if err != nil {
		return persistence.NewEntityError("DeleteByJob", "start condition", jobID, err)
	}

	return nil
}
