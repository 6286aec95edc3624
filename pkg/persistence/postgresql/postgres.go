// Package postgresql provides PostgreSQL persistence implementation for pipelines and jobs.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/dukex/jobline/pkg/persistence"
	"github.com/dukex/jobline/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	pipelineRepo       *PipelineRepository
	jobRepo            *JobRepository
	paramRepo          *ParamRepository
	startConditionRepo *StartConditionRepository
	scheduleRepo       *ScheduleRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	// Run migrations on initialization
	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return newPersistence(database, logger), nil
}

func newPersistence(database *sql.DB, logger *slog.Logger) *Persistence {
	return &Persistence{
		db:                 database,
		logger:             logger,
		pipelineRepo:       NewPipelineRepository(database, logger),
		jobRepo:            NewJobRepository(database, logger),
		paramRepo:          NewParamRepository(database, logger),
		startConditionRepo: NewStartConditionRepository(database, logger),
		scheduleRepo:       NewScheduleRepository(database, logger),
	}
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) PipelineRepository() persistence.PipelineRepository {
	return p.pipelineRepo
}

func (p *Persistence) JobRepository() persistence.JobRepository {
	return p.jobRepo
}

func (p *Persistence) ParamRepository() persistence.ParamRepository {
	return p.paramRepo
}

func (p *Persistence) StartConditionRepository() persistence.StartConditionRepository {
	return p.startConditionRepo
}

func (p *Persistence) ScheduleRepository() persistence.ScheduleRepository {
	return p.scheduleRepo
}

type scanner interface {
	Scan(dest ...any) error
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		logger.ErrorContext(ctx, "Failed to close rows", "error", err)
	}
}

func rollback(ctx context.Context, logger *slog.Logger, tx *sql.Tx) {
	err := tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}

	v := t.Time

	return &v
}

// stamp fills the ID and timestamps of a record about to be written.
func stamp(id *string, createdAt, updatedAt *time.Time) error {
	if *id == "" {
		generated, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate ID: %w", err)
		}

		*id = generated.String()
	}

	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}

	if updatedAt != nil {
		*updatedAt = now
	}

	return nil
}
