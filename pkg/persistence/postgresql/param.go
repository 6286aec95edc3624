package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence"
)

const selectParam = `
	SELECT
		id
	  , pipeline_id
	  , job_id
	  , name
	  , type
	  , value
	  , label
	  , description
	  , is_required
	  , created_at
	  , updated_at
	FROM params
`

// ParamRepository handles param-related database operations.
// The param scope is stored as two nullable owner columns.
type ParamRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewParamRepository creates a new param repository.
func NewParamRepository(db *sql.DB, logger *slog.Logger) *ParamRepository {
	return &ParamRepository{db: db, logger: logger}
}

func (r *ParamRepository) GetByID(ctx context.Context, id string) (*models.Param, error) {
	param, err := scanParam(r.db.QueryRowContext(ctx, selectParam+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "param", id, persistence.ErrParamNotFound)
		}

		return nil, persistence.NewEntityError("GetByID", "param", id, err)
	}

	return param, nil
}

func (r *ParamRepository) GetByScope(ctx context.Context, scope models.ParamScope) ([]*models.Param, error) {
	where, args := scopeFilter(scope)

	rows, err := r.db.QueryContext(ctx, selectParam+" WHERE "+where+" ORDER BY created_at ASC, id ASC", args...)
	if err != nil {
		return nil, persistence.NewEntityError("GetByScope", "param", "", err)
	}
	defer closeRows(ctx, r.logger, rows)

	params := make([]*models.Param, 0)

	for rows.Next() {
		param, err := scanParam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan param: %w", err)
		}

		params = append(params, param)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating params: %w", err)
	}

	return params, nil
}

// Save saves a param to the database.
func (r *ParamRepository) Save(ctx context.Context, param *models.Param) error {
	if err := stamp(&param.ID, &param.CreatedAt, &param.UpdatedAt); err != nil {
		return err
	}

	query := `
		INSERT INTO params (id, pipeline_id, job_id, name, type, value, label, description,
			is_required, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			value = EXCLUDED.value,
			label = EXCLUDED.label,
			description = EXCLUDED.description,
			is_required = EXCLUDED.is_required,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		param.ID,
		nullString(param.Scope.PipelineID()),
		nullString(param.Scope.JobID()),
		param.Name,
		param.Type,
		param.Value,
		param.Label,
		param.Description,
		param.IsRequired,
		param.CreatedAt,
		param.UpdatedAt,
	)
	if err != nil {
		return persistence.NewEntityError("Save", "param", param.ID, err)
	}

	return nil
}

func (r *ParamRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM params WHERE id = $1", id)
	if err != nil {
		return persistence.NewEntityError("Delete", "param", id, err)
	}

	return nil
}

func (r *ParamRepository) DeleteByScope(ctx context.Context, scope models.ParamScope) error {
	where, args := scopeFilter(scope)

	_, err := r.db.ExecContext(ctx, "DELETE FROM params WHERE "+where, args...)
	if err != nil {
		return persistence.NewEntityError("DeleteByScope", "param", "", err)
	}

	return nil
}

func scopeFilter(scope models.ParamScope) (string, []any) {
	switch scope.Kind {
	case models.ScopeJob:
		return "job_id = $1", []any{scope.OwnerID}
	case models.ScopePipeline:
		return "pipeline_id = $1", []any{scope.OwnerID}
	default:
		return "pipeline_id IS NULL AND job_id IS NULL", nil
	}
}

func scanParam(row scanner) (*models.Param, error) {
	var (
		param      models.Param
		pipelineID sql.NullString
		jobID      sql.NullString
	)

	err := row.Scan(
		&param.ID,
		&pipelineID,
		&jobID,
		&param.Name,
		&param.Type,
		&param.Value,
		&param.Label,
		&param.Description,
		&param.IsRequired,
		&param.CreatedAt,
		&param.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	param.Scope = models.ScopeFromOwners(pipelineID.String, jobID.String)

	return &param, nil
}
