// Package persistence provides the data storage abstraction layer for pipelines and jobs.
package persistence

import (
	"context"

	"github.com/dukex/jobline/pkg/models"
)

type Persistence interface {
	PipelineRepository() PipelineRepository
	JobRepository() JobRepository
	ParamRepository() ParamRepository
	StartConditionRepository() StartConditionRepository
	ScheduleRepository() ScheduleRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// PipelineMutation changes a pipeline inside an atomic update. Returning an
// error aborts the update and leaves the stored pipeline untouched.
type PipelineMutation func(pipeline *models.Pipeline) error

// JobMutation changes a job inside an atomic update. Returning an error aborts
// the update and leaves the stored job untouched.
type JobMutation func(job *models.Job) error

type PipelineRepository interface {
	GetAll(ctx context.Context) ([]*models.Pipeline, error)
	GetByID(ctx context.Context, id string) (*models.Pipeline, error)
	// Save inserts or replaces a pipeline, assigning an ID when empty.
	Save(ctx context.Context, pipeline *models.Pipeline) error
	// Update reads, mutates and writes the pipeline with no interleaving writer.
	Update(ctx context.Context, id string, mutate PipelineMutation) (*models.Pipeline, error)
	Delete(ctx context.Context, id string) error
}

type JobRepository interface {
	GetByID(ctx context.Context, id string) (*models.Job, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.Job, error)
	GetByPipeline(ctx context.Context, pipelineID string) ([]*models.Job, error)
	GetByStatus(ctx context.Context, pipelineID string, statuses ...models.JobStatus) ([]*models.Job, error)
	Save(ctx context.Context, job *models.Job) error
	// Update reads, mutates and writes the job with no interleaving writer.
	// Concurrent worker callbacks for the same job are serialized here.
	Update(ctx context.Context, id string, mutate JobMutation) (*models.Job, error)
	Delete(ctx context.Context, id string) error
}

type ParamRepository interface {
	GetByID(ctx context.Context, id string) (*models.Param, error)
	// GetByScope returns the params owned by scope in creation order.
	GetByScope(ctx context.Context, scope models.ParamScope) ([]*models.Param, error)
	Save(ctx context.Context, param *models.Param) error
	Delete(ctx context.Context, id string) error
	DeleteByScope(ctx context.Context, scope models.ParamScope) error
}

type StartConditionRepository interface {
	// GetByJob returns the incoming edges of a job in creation order.
	GetByJob(ctx context.Context, jobID string) ([]*models.StartCondition, error)
	// GetByPrecedingJob returns the outgoing edges of a job in creation order.
	GetByPrecedingJob(ctx context.Context, jobID string) ([]*models.StartCondition, error)
	GetByPipeline(ctx context.Context, pipelineID string) ([]*models.StartCondition, error)
	Save(ctx context.Context, startCondition *models.StartCondition) error
	Delete(ctx context.Context, id string) error
	// DeleteByJob removes every edge touching the job, incoming and outgoing.
	DeleteByJob(ctx context.Context, jobID string) error
}

type ScheduleRepository interface {
	GetAll(ctx context.Context) ([]*models.Schedule, error)
	GetByPipeline(ctx context.Context, pipelineID string) ([]*models.Schedule, error)
	Save(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id string) error
	DeleteByPipeline(ctx context.Context, pipelineID string) error
}
