package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/jobline/pkg/graph"
	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence"
	"github.com/dukex/jobline/pkg/schema"
	"github.com/go-playground/validator/v10"
)

type Pipelines struct {
	persistence persistence.Persistence
	params      *Params
	jobs        *Jobs
	validate    *validator.Validate
}

// NewPipelines creates a new pipelines service.
func NewPipelines(persistence persistence.Persistence) *Pipelines {
	return &Pipelines{
		persistence: persistence,
		params:      NewParams(persistence),
		jobs:        NewJobs(persistence),
		validate:    validator.New(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (p *Pipelines) HealthCheck(ctx context.Context) (string, bool) {
	if p.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := p.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (p *Pipelines) Get(ctx context.Context, id string) (*models.Pipeline, error) {
	return p.persistence.PipelineRepository().GetByID(ctx, id)
}

func (p *Pipelines) List(ctx context.Context) ([]*models.Pipeline, error) {
	pipelines, err := p.persistence.PipelineRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}

	return pipelines, nil
}

// Params returns the params owned by a pipeline.
func (p *Pipelines) Params(ctx context.Context, pipelineID string) ([]*models.Param, error) {
	return p.params.List(ctx, models.PipelineScope(pipelineID))
}

func (p *Pipelines) Schedules(ctx context.Context, pipelineID string) ([]*models.Schedule, error) {
	return p.persistence.ScheduleRepository().GetByPipeline(ctx, pipelineID)
}

// Create stores a new idle pipeline. When a relation in the request is
// rejected the new pipeline is removed again.
func (p *Pipelines) Create(ctx context.Context, req PipelineRequest) (*models.Pipeline, error) {
	const op = "create_pipeline"

	pipeline := models.NewPipeline("")

	if err := pipeline.AssignAttributes(req.Attributes); err != nil {
		return nil, NewValidationError(op, "INVALID_ATTRIBUTES", err.Error(), err)
	}

	if err := p.validate.Struct(pipeline); err != nil {
		return nil, NewValidationError(op, "INVALID_PIPELINE", err.Error(), ErrInvalidRequest)
	}

	if err := p.persistence.PipelineRepository().Save(ctx, pipeline); err != nil {
		return nil, fmt.Errorf("failed to save pipeline: %w", err)
	}

	if err := p.saveRelations(ctx, pipeline.ID, req); err != nil {
		if destroyErr := p.destroy(ctx, pipeline.ID); destroyErr != nil {
			return nil, errors.Join(err, destroyErr)
		}

		return nil, err
	}

	return pipeline, nil
}

// Update changes the attributes of a pipeline that is not blocked and
// replaces the relations the request carries.
func (p *Pipelines) Update(ctx context.Context, id string, req PipelineRequest) (*models.Pipeline, error) {
	const op = "update_pipeline"

	pipeline, err := p.persistence.PipelineRepository().Update(ctx, id, func(pipeline *models.Pipeline) error {
		if pipeline.IsBlocked() {
			return blockedError(op, pipeline)
		}

		if err := pipeline.AssignAttributes(req.Attributes); err != nil {
			return NewValidationError(op, "INVALID_ATTRIBUTES", err.Error(), err)
		}

		if err := p.validate.Struct(pipeline); err != nil {
			return NewValidationError(op, "INVALID_PIPELINE", err.Error(), ErrInvalidRequest)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := p.saveRelations(ctx, id, req); err != nil {
		return nil, err
	}

	return pipeline, nil
}

// SetRunOnSchedule toggles schedule-driven runs. It is allowed while the
// pipeline is blocked since it is how a scheduled pipeline is released.
func (p *Pipelines) SetRunOnSchedule(ctx context.Context, id string, enabled bool) (*models.Pipeline, error) {
	return p.persistence.PipelineRepository().Update(ctx, id, func(pipeline *models.Pipeline) error {
		pipeline.RunOnSchedule = enabled

		return nil
	})
}

// Destroy removes a pipeline that is not blocked together with its
// schedules, jobs and params.
func (p *Pipelines) Destroy(ctx context.Context, id string) error {
	pipeline, err := p.persistence.PipelineRepository().GetByID(ctx, id)
	if err != nil {
		return err
	}

	if pipeline.IsBlocked() {
		return blockedError("destroy_pipeline", pipeline)
	}

	return p.destroy(ctx, id)
}

func (p *Pipelines) destroy(ctx context.Context, id string) error {
	if err := p.persistence.ScheduleRepository().DeleteByPipeline(ctx, id); err != nil {
		return fmt.Errorf("failed to delete schedules of pipeline %s: %w", id, err)
	}

	jobs, err := p.persistence.JobRepository().GetByPipeline(ctx, id)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := p.jobs.destroy(ctx, job); err != nil {
			return err
		}
	}

	if err := p.persistence.ParamRepository().DeleteByScope(ctx, models.PipelineScope(id)); err != nil {
		return fmt.Errorf("failed to delete params of pipeline %s: %w", id, err)
	}

	if err := p.persistence.PipelineRepository().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete pipeline %s: %w", id, err)
	}

	return nil
}

func (p *Pipelines) saveRelations(ctx context.Context, pipelineID string, req PipelineRequest) error {
	if req.Params != nil {
		if _, err := p.params.ReconcilePipelineParams(ctx, pipelineID, req.Params); err != nil {
			return err
		}
	}

	if req.Schedules != nil {
		if _, err := p.ReconcileSchedules(ctx, pipelineID, req.Schedules); err != nil {
			return err
		}
	}

	return nil
}

// ReconcileSchedules makes the schedules of a pipeline match desired.
// Entries with an ID must already belong to the pipeline.
func (p *Pipelines) ReconcileSchedules(ctx context.Context, pipelineID string, desired []ScheduleInput) ([]*models.Schedule, error) {
	const op = "reconcile_schedules"

	repo := p.persistence.ScheduleRepository()

	existing, err := repo.GetByPipeline(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	owned := make(map[string]*models.Schedule, len(existing))
	for _, schedule := range existing {
		owned[schedule.ID] = schedule
	}

	planned := make([]*models.Schedule, 0, len(desired))

	for _, input := range desired {
		schedule := &models.Schedule{PipelineID: pipelineID}

		if input.ID != "" {
			stored, ok := owned[input.ID]
			if !ok {
				return nil, NewValidationError(op, "UNKNOWN_SCHEDULE",
					fmt.Sprintf("schedule %s is not owned by pipeline %s", input.ID, pipelineID), ErrUnknownSchedule)
			}

			schedule = stored
		}

		schedule.Cron = input.Cron

		if err := schedule.Validate(); err != nil {
			return nil, NewValidationError(op, "INVALID_SCHEDULE", err.Error(), err)
		}

		planned = append(planned, schedule)
	}

	kept := make(map[string]bool, len(planned))

	for _, schedule := range planned {
		if err := repo.Save(ctx, schedule); err != nil {
			return nil, fmt.Errorf("failed to save schedule: %w", err)
		}

		kept[schedule.ID] = true
	}

	for _, schedule := range existing {
		if kept[schedule.ID] {
			continue
		}

		if err := repo.Delete(ctx, schedule.ID); err != nil {
			return nil, fmt.Errorf("failed to delete schedule %s: %w", schedule.ID, err)
		}
	}

	return planned, nil
}

// ParseDefinition validates a JSON pipeline definition against the
// definition schema and decodes it.
func ParseDefinition(body []byte) (*Definition, error) {
	const op = "parse_definition"

	if err := schema.ValidateDefinition(body); err != nil {
		return nil, NewValidationError(op, "INVALID_DEFINITION", err.Error(), ErrInvalidDefinition)
	}

	var definition Definition
	if err := json.Unmarshal(body, &definition); err != nil {
		return nil, NewValidationError(op, "INVALID_DEFINITION", err.Error(), ErrInvalidDefinition)
	}

	return &definition, nil
}

// CreateFromDefinition creates a pipeline and imports the definition into it.
// run_on_schedule is applied last so the import is not refused.
func (p *Pipelines) CreateFromDefinition(ctx context.Context, definition *Definition) (*models.Pipeline, error) {
	if err := p.checkDefinition("create_from_definition", definition); err != nil {
		return nil, err
	}

	pipeline, err := p.Create(ctx, PipelineRequest{Attributes: map[string]any{
		"name":                     definition.Name,
		"emails_for_notifications": definition.EmailsForNotifications,
	}})
	if err != nil {
		return nil, err
	}

	if err := p.Import(ctx, pipeline.ID, definition); err != nil {
		if destroyErr := p.destroy(ctx, pipeline.ID); destroyErr != nil {
			return nil, errors.Join(err, destroyErr)
		}

		return nil, err
	}

	if !definition.RunOnSchedule {
		return p.Get(ctx, pipeline.ID)
	}

	return p.SetRunOnSchedule(ctx, pipeline.ID, true)
}

// Import replaces the params and schedules of a pipeline with those of the
// definition and appends its jobs. Job IDs in the definition only link start
// conditions to jobs: jobs are created first, then their start conditions
// are created through the mapping to the new IDs. The whole definition is
// checked before the first write.
func (p *Pipelines) Import(ctx context.Context, pipelineID string, definition *Definition) error {
	const op = "import_pipeline"

	pipeline, err := p.persistence.PipelineRepository().GetByID(ctx, pipelineID)
	if err != nil {
		return err
	}

	if pipeline.IsBlocked() {
		return blockedError(op, pipeline)
	}

	if err := p.checkDefinition(op, definition); err != nil {
		return err
	}

	if _, err := p.params.ReconcilePipelineParams(ctx, pipelineID, withoutParamIDs(definition.Params)); err != nil {
		return err
	}

	schedules := make([]ScheduleInput, 0, len(definition.Schedules))
	for _, schedule := range definition.Schedules {
		schedules = append(schedules, ScheduleInput{Cron: schedule.Cron})
	}

	if _, err := p.ReconcileSchedules(ctx, pipelineID, schedules); err != nil {
		return err
	}

	mapping := make(map[string]string, len(definition.Jobs))

	for _, jobDefinition := range definition.Jobs {
		job := models.NewJob(pipelineID, jobDefinition.Name, jobDefinition.WorkerClass)

		if err := p.persistence.JobRepository().Save(ctx, job); err != nil {
			return fmt.Errorf("failed to save job %q: %w", jobDefinition.Name, err)
		}

		if _, err := p.params.ReconcileJobParams(ctx, job.ID, withoutParamIDs(jobDefinition.Params)); err != nil {
			return err
		}

		mapping[jobDefinition.ID] = job.ID
	}

	for _, jobDefinition := range definition.Jobs {
		for _, input := range jobDefinition.HashStartConditions {
			sc := &models.StartCondition{
				JobID:          mapping[jobDefinition.ID],
				PrecedingJobID: mapping[input.PrecedingJobID],
				Condition:      input.Condition,
			}

			if err := p.persistence.StartConditionRepository().Save(ctx, sc); err != nil {
				return fmt.Errorf("failed to save start condition of job %q: %w", jobDefinition.Name, err)
			}
		}
	}

	return nil
}

// checkDefinition validates a definition without touching storage.
func (p *Pipelines) checkDefinition(op string, definition *Definition) error {
	if definition == nil {
		return NewValidationError(op, "INVALID_DEFINITION", "definition is empty", ErrInvalidDefinition)
	}

	if _, err := p.params.check(op, definition.Params); err != nil {
		return err
	}

	for _, schedule := range definition.Schedules {
		if err := (&models.Schedule{PipelineID: "import", Cron: schedule.Cron}).Validate(); err != nil {
			return NewValidationError(op, "INVALID_SCHEDULE", err.Error(), err)
		}
	}

	ids := make([]string, 0, len(definition.Jobs))
	known := make(map[string]bool, len(definition.Jobs))

	for _, job := range definition.Jobs {
		if job.ID == "" || known[job.ID] {
			return NewValidationError(op, "INVALID_DEFINITION",
				fmt.Sprintf("job %q needs a unique id", job.Name), ErrInvalidDefinition)
		}

		if err := p.validate.Struct(models.NewJob("import", job.Name, job.WorkerClass)); err != nil {
			return NewValidationError(op, "INVALID_DEFINITION", err.Error(), ErrInvalidDefinition)
		}

		if _, err := p.params.check(op, job.Params); err != nil {
			return err
		}

		known[job.ID] = true
		ids = append(ids, job.ID)
	}

	var edges []*models.StartCondition

	for _, job := range definition.Jobs {
		seen := make(map[string]bool, len(job.HashStartConditions))

		for _, input := range job.HashStartConditions {
			if err := p.validate.Struct(input); err != nil {
				return NewValidationError(op, "INVALID_START_CONDITION", err.Error(), ErrInvalidStartCondition)
			}

			if !known[input.PrecedingJobID] {
				return NewValidationError(op, "UNKNOWN_PRECEDING_JOB",
					fmt.Sprintf("job %q depends on unknown job %q", job.ID, input.PrecedingJobID), ErrInvalidStartCondition)
			}

			if seen[input.PrecedingJobID] {
				return NewValidationError(op, "DUPLICATE_START_CONDITION",
					fmt.Sprintf("job %q lists %q twice", job.ID, input.PrecedingJobID), ErrInvalidStartCondition)
			}

			seen[input.PrecedingJobID] = true

			edges = append(edges, &models.StartCondition{
				JobID:          job.ID,
				PrecedingJobID: input.PrecedingJobID,
				Condition:      input.Condition,
			})
		}
	}

	if err := graph.CheckAcyclic(ids, edges); err != nil {
		return NewValidationError(op, "CYCLIC_DEPENDENCY", err.Error(), ErrCyclicDependency)
	}

	return nil
}

// Export returns the portable definition of a pipeline. Stored job IDs are
// used as the definition's job IDs.
func (p *Pipelines) Export(ctx context.Context, pipelineID string) (*Definition, error) {
	pipeline, err := p.persistence.PipelineRepository().GetByID(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	params, err := p.Params(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	schedules, err := p.Schedules(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	jobs, err := p.persistence.JobRepository().GetByPipeline(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	definition := &Definition{
		Name:                   pipeline.Name,
		EmailsForNotifications: pipeline.EmailsForNotifications,
		RunOnSchedule:          pipeline.RunOnSchedule,
		Params:                 paramInputs(params, false),
		Schedules:              make([]ScheduleInput, 0, len(schedules)),
		Jobs:                   make([]JobDefinition, 0, len(jobs)),
	}

	for _, schedule := range schedules {
		definition.Schedules = append(definition.Schedules, ScheduleInput{Cron: schedule.Cron})
	}

	for _, job := range jobs {
		jobParams, err := p.jobs.Params(ctx, job.ID)
		if err != nil {
			return nil, err
		}

		conditions, err := p.jobs.StartConditions(ctx, job.ID)
		if err != nil {
			return nil, err
		}

		jobDefinition := JobDefinition{
			ID:                  job.ID,
			Name:                job.Name,
			WorkerClass:         job.WorkerClass,
			Params:              paramInputs(jobParams, false),
			HashStartConditions: make([]StartConditionInput, 0, len(conditions)),
		}

		for _, sc := range conditions {
			jobDefinition.HashStartConditions = append(jobDefinition.HashStartConditions, StartConditionInput{
				PrecedingJobID: sc.PrecedingJobID,
				Condition:      sc.Condition,
			})
		}

		definition.Jobs = append(definition.Jobs, jobDefinition)
	}

	return definition, nil
}

func withoutParamIDs(inputs []ParamInput) []ParamInput {
	stripped := make([]ParamInput, 0, len(inputs))

	for _, input := range inputs {
		input.ID = ""
		stripped = append(stripped, input)
	}

	return stripped
}
