package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/jobline/pkg/graph"
	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence"
	"github.com/go-playground/validator/v10"
)

type Jobs struct {
	persistence persistence.Persistence
	params      *Params
	validate    *validator.Validate
}

// NewJobs creates a new jobs service.
func NewJobs(persistence persistence.Persistence) *Jobs {
	return &Jobs{
		persistence: persistence,
		params:      NewParams(persistence),
		validate:    validator.New(),
	}
}

func (j *Jobs) Get(ctx context.Context, id string) (*models.Job, error) {
	return j.persistence.JobRepository().GetByID(ctx, id)
}

// ListByPipeline returns the jobs of an existing pipeline.
func (j *Jobs) ListByPipeline(ctx context.Context, pipelineID string) ([]*models.Job, error) {
	if _, err := j.persistence.PipelineRepository().GetByID(ctx, pipelineID); err != nil {
		return nil, err
	}

	return j.persistence.JobRepository().GetByPipeline(ctx, pipelineID)
}

// Params returns the params owned by a job.
func (j *Jobs) Params(ctx context.Context, jobID string) ([]*models.Param, error) {
	return j.params.List(ctx, models.JobScope(jobID))
}

// StartConditions returns the incoming edges of a job.
func (j *Jobs) StartConditions(ctx context.Context, jobID string) ([]*models.StartCondition, error) {
	return j.persistence.StartConditionRepository().GetByJob(ctx, jobID)
}

// Create adds a job to a pipeline that is not blocked. When a relation in
// the request is rejected the new job is removed again.
func (j *Jobs) Create(ctx context.Context, pipelineID string, req JobRequest) (*models.Job, error) {
	const op = "create_job"

	pipeline, err := j.persistence.PipelineRepository().GetByID(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	if pipeline.IsBlocked() {
		return nil, blockedError(op, pipeline)
	}

	job := models.NewJob(pipelineID, "", "")

	if err := job.AssignAttributes(req.Attributes); err != nil {
		return nil, NewValidationError(op, "INVALID_ATTRIBUTES", err.Error(), err)
	}

	if err := j.validate.Struct(job); err != nil {
		return nil, NewValidationError(op, "INVALID_JOB", err.Error(), ErrInvalidRequest)
	}

	if err := j.persistence.JobRepository().Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := j.saveRelations(ctx, job, req); err != nil {
		if destroyErr := j.destroy(ctx, job); destroyErr != nil {
			return nil, errors.Join(err, destroyErr)
		}

		return nil, err
	}

	return job, nil
}

// Update changes the attributes of a job and replaces the relations the
// request carries.
func (j *Jobs) Update(ctx context.Context, id string, req JobRequest) (*models.Job, error) {
	const op = "update_job"

	job, err := j.persistence.JobRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := j.checkPipeline(ctx, op, job.PipelineID); err != nil {
		return nil, err
	}

	job, err = j.persistence.JobRepository().Update(ctx, id, func(job *models.Job) error {
		if err := job.AssignAttributes(req.Attributes); err != nil {
			return NewValidationError(op, "INVALID_ATTRIBUTES", err.Error(), err)
		}

		if err := j.validate.Struct(job); err != nil {
			return NewValidationError(op, "INVALID_JOB", err.Error(), ErrInvalidRequest)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := j.saveRelations(ctx, job, req); err != nil {
		return nil, err
	}

	return job, nil
}

// Destroy removes a job with its edges and params.
func (j *Jobs) Destroy(ctx context.Context, id string) error {
	job, err := j.persistence.JobRepository().GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := j.checkPipeline(ctx, "destroy_job", job.PipelineID); err != nil {
		return err
	}

	return j.destroy(ctx, job)
}

func (j *Jobs) destroy(ctx context.Context, job *models.Job) error {
	if err := j.persistence.StartConditionRepository().DeleteByJob(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to delete start conditions of job %s: %w", job.ID, err)
	}

	if err := j.persistence.ParamRepository().DeleteByScope(ctx, models.JobScope(job.ID)); err != nil {
		return fmt.Errorf("failed to delete params of job %s: %w", job.ID, err)
	}

	if err := j.persistence.JobRepository().Delete(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", job.ID, err)
	}

	return nil
}

func (j *Jobs) saveRelations(ctx context.Context, job *models.Job, req JobRequest) error {
	if req.Params != nil {
		if _, err := j.params.ReconcileJobParams(ctx, job.ID, req.Params); err != nil {
			return err
		}
	}

	if req.StartConditions != nil {
		if _, err := j.ReconcileStartConditions(ctx, job.ID, req.StartConditions); err != nil {
			return err
		}
	}

	return nil
}

func (j *Jobs) checkPipeline(ctx context.Context, op, pipelineID string) error {
	pipeline, err := j.persistence.PipelineRepository().GetByID(ctx, pipelineID)
	if err != nil {
		return err
	}

	if pipeline.IsBlocked() {
		return blockedError(op, pipeline)
	}

	return nil
}

// ReconcileStartConditions makes the incoming edges of a job match desired,
// keyed by preceding job. Predecessors must exist in the same pipeline and
// the resulting graph must stay acyclic; nothing is written otherwise.
func (j *Jobs) ReconcileStartConditions(ctx context.Context, jobID string, desired []StartConditionInput) ([]*models.StartCondition, error) {
	const op = "reconcile_start_conditions"

	job, err := j.persistence.JobRepository().GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]models.Condition, len(desired))

	for _, input := range desired {
		if err := j.validate.Struct(input); err != nil {
			return nil, NewValidationError(op, "INVALID_START_CONDITION", err.Error(), ErrInvalidStartCondition)
		}

		if input.PrecedingJobID == jobID {
			return nil, NewValidationError(op, "SELF_DEPENDENCY", "a job cannot depend on itself", ErrCyclicDependency)
		}

		if _, ok := wanted[input.PrecedingJobID]; ok {
			return nil, NewValidationError(op, "DUPLICATE_START_CONDITION",
				fmt.Sprintf("job %s is listed twice", input.PrecedingJobID), ErrInvalidStartCondition)
		}

		preceding, err := j.persistence.JobRepository().GetByID(ctx, input.PrecedingJobID)
		if err != nil {
			if persistence.IsNotFound(err) {
				return nil, NewValidationError(op, "UNKNOWN_PRECEDING_JOB",
					fmt.Sprintf("job %s does not exist", input.PrecedingJobID), ErrInvalidStartCondition)
			}

			return nil, err
		}

		if preceding.PipelineID != job.PipelineID {
			return nil, NewValidationError(op, "CROSS_PIPELINE_DEPENDENCY",
				fmt.Sprintf("job %s belongs to another pipeline", input.PrecedingJobID), ErrCrossPipelineDependency)
		}

		wanted[input.PrecedingJobID] = input.Condition
	}

	if err := j.checkAcyclic(ctx, job, desired); err != nil {
		if errors.Is(err, graph.ErrCycle) {
			return nil, NewValidationError(op, "CYCLIC_DEPENDENCY", err.Error(), ErrCyclicDependency)
		}

		return nil, err
	}

	repo := j.persistence.StartConditionRepository()

	existing, err := repo.GetByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	current := make(map[string]*models.StartCondition, len(existing))

	for _, sc := range existing {
		if _, ok := wanted[sc.PrecedingJobID]; !ok {
			if err := repo.Delete(ctx, sc.ID); err != nil {
				return nil, fmt.Errorf("failed to delete start condition %s: %w", sc.ID, err)
			}

			continue
		}

		current[sc.PrecedingJobID] = sc
	}

	result := make([]*models.StartCondition, 0, len(desired))

	for _, input := range desired {
		sc, ok := current[input.PrecedingJobID]
		if !ok {
			sc = &models.StartCondition{JobID: jobID, PrecedingJobID: input.PrecedingJobID}
		}

		if !ok || sc.Condition != input.Condition {
			sc.Condition = input.Condition

			if err := repo.Save(ctx, sc); err != nil {
				return nil, fmt.Errorf("failed to save start condition: %w", err)
			}
		}

		result = append(result, sc)
	}

	return result, nil
}

// checkAcyclic checks the pipeline graph with the incoming edges of job
// replaced by desired.
func (j *Jobs) checkAcyclic(ctx context.Context, job *models.Job, desired []StartConditionInput) error {
	jobs, err := j.persistence.JobRepository().GetByPipeline(ctx, job.PipelineID)
	if err != nil {
		return err
	}

	edges, err := j.persistence.StartConditionRepository().GetByPipeline(ctx, job.PipelineID)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(jobs))
	for _, other := range jobs {
		ids = append(ids, other.ID)
	}

	candidate := make([]*models.StartCondition, 0, len(edges)+len(desired))

	for _, sc := range edges {
		if sc.JobID != job.ID {
			candidate = append(candidate, sc)
		}
	}

	for _, input := range desired {
		candidate = append(candidate, &models.StartCondition{
			JobID:          job.ID,
			PrecedingJobID: input.PrecedingJobID,
			Condition:      input.Condition,
		})
	}

	return graph.CheckAcyclic(ids, candidate)
}

func blockedError(op string, pipeline *models.Pipeline) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    "PIPELINE_BLOCKED",
		Message: fmt.Sprintf("pipeline %s is scheduled or %s", pipeline.ID, pipeline.Status),
		Err:     ErrPipelineBlocked,
	}
}
