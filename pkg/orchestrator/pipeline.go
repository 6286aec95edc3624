package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/jobline/pkg/graph"
	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// StartPipeline prepares every job, marks the pipeline running and starts
// the jobs whose start conditions allow it.
//
// A job that fails preparation aborts the start; jobs prepared before it
// stay waiting. A dispatch failure stops starting further jobs and is
// returned with the pipeline left running.
func (o *Orchestrator) StartPipeline(ctx context.Context, pipelineID string) (started bool, err error) {
	ctx, span := o.span(ctx, "orchestrator.start_pipeline", attribute.String(otelhelper.PipelineIDKey, pipelineID))
	defer func() { finish(span, err) }()

	pipeline, err := o.persistence.PipelineRepository().GetByID(ctx, pipelineID)
	if err != nil {
		return false, err
	}

	logger := o.logger.With("pipeline_id", pipelineID)

	if !pipeline.CanStart() {
		logger.InfoContext(ctx, "Pipeline cannot start", "status", pipeline.Status)

		return false, nil
	}

	jobs, err := o.persistence.JobRepository().GetByPipeline(ctx, pipelineID)
	if err != nil {
		return false, err
	}

	if len(jobs) == 0 {
		logger.InfoContext(ctx, "Pipeline has no jobs")

		return false, nil
	}

	for _, job := range jobs {
		if !job.Status.CanGetReady() {
			logger.InfoContext(ctx, "Pipeline has an unfinished job", "job_id", job.ID, "status", job.Status)

			return false, nil
		}
	}

	for _, job := range jobs {
		ready, err := o.GetReady(ctx, job.ID)
		if err != nil {
			return false, err
		}

		if !ready {
			logger.WarnContext(ctx, "Pipeline start aborted", "job_id", job.ID)

			return false, nil
		}
	}

	_, started, err = o.transitionPipeline(ctx, pipelineID,
		func(pipeline *models.Pipeline) bool { return pipeline.CanStart() },
		func(pipeline *models.Pipeline) { pipeline.SetStatus(models.PipelineStatusRunning, o.timestamp()) },
	)
	if err != nil || !started {
		return false, err
	}

	logger.InfoContext(ctx, "Pipeline running")

	for _, job := range jobs {
		if _, err := o.StartJob(ctx, job.ID); err != nil {
			return false, fmt.Errorf("failed to start job %s: %w", job.ID, err)
		}
	}

	return true, nil
}

// StopPipeline stops every job. The pipeline finalizes at once when no job
// is left in flight, otherwise it waits in stopping for worker results.
func (o *Orchestrator) StopPipeline(ctx context.Context, pipelineID string) (stopped bool, err error) {
	ctx, span := o.span(ctx, "orchestrator.stop_pipeline", attribute.String(otelhelper.PipelineIDKey, pipelineID))
	defer func() { finish(span, err) }()

	pipeline, err := o.persistence.PipelineRepository().GetByID(ctx, pipelineID)
	if err != nil {
		return false, err
	}

	if pipeline.Status != models.PipelineStatusRunning {
		return false, nil
	}

	jobs, err := o.persistence.JobRepository().GetByPipeline(ctx, pipelineID)
	if err != nil {
		return false, err
	}

	for _, job := range jobs {
		if _, err := o.StopJob(ctx, job.ID); err != nil {
			return false, err
		}
	}

	pending, err := o.persistence.JobRepository().GetByStatus(ctx, pipelineID, inFlightStatuses...)
	if err != nil {
		return false, err
	}

	if len(pending) == 0 {
		if _, err := o.finalize(ctx, pipelineID); err != nil {
			return false, err
		}

		return true, nil
	}

	_, _, err = o.transitionPipeline(ctx, pipelineID,
		func(pipeline *models.Pipeline) bool { return pipeline.Status == models.PipelineStatusRunning },
		func(pipeline *models.Pipeline) { pipeline.SetStatus(models.PipelineStatusStopping, o.timestamp()) },
	)
	if err != nil {
		return false, err
	}

	o.logger.InfoContext(ctx, "Pipeline stopping", "pipeline_id", pipelineID, "pending_jobs", len(pending))

	return true, nil
}

// StartSingleJob reruns one job outside the dependency graph.
func (o *Orchestrator) StartSingleJob(ctx context.Context, pipelineID, jobID string) (started bool, err error) {
	ctx, span := o.span(ctx, "orchestrator.start_single_job",
		attribute.String(otelhelper.PipelineIDKey, pipelineID),
		attribute.String(otelhelper.JobIDKey, jobID),
	)
	defer func() { finish(span, err) }()

	pipeline, err := o.persistence.PipelineRepository().GetByID(ctx, pipelineID)
	if err != nil {
		return false, err
	}

	if !pipeline.CanStart() {
		return false, nil
	}

	job, err := o.persistence.JobRepository().GetByID(ctx, jobID)
	if err != nil {
		return false, err
	}

	if job.PipelineID != pipelineID {
		return false, fmt.Errorf("%w: job %s, pipeline %s", ErrJobOutsidePipeline, jobID, pipelineID)
	}

	if !notInFlight(job) {
		return false, nil
	}

	if _, err := o.resolveJobParams(ctx, job); err != nil {
		return false, err
	}

	_, started, err = o.transitionPipeline(ctx, pipelineID,
		func(pipeline *models.Pipeline) bool { return pipeline.CanStart() },
		func(pipeline *models.Pipeline) { pipeline.SetStatus(models.PipelineStatusRunning, o.timestamp()) },
	)
	if err != nil || !started {
		return false, err
	}

	var configErr *ConfigurationError

	err = o.RunJob(ctx, jobID)
	if err == nil || !(errors.Is(err, ErrJobActive) || errors.As(err, &configErr)) {
		o.logger.InfoContext(ctx, "Single job started", "pipeline_id", pipelineID, "job_id", jobID)

		return true, err
	}

	if errors.Is(err, ErrJobActive) {
		err = nil
	}

	// Nothing was dispatched, so let the pipeline settle back.
	if _, finishErr := o.JobFinished(ctx, pipelineID); finishErr != nil && err == nil {
		err = finishErr
	}

	return false, err
}

// JobFinished finalizes the pipeline once none of its jobs is in flight.
func (o *Orchestrator) JobFinished(ctx context.Context, pipelineID string) (finished bool, err error) {
	ctx, span := o.span(ctx, "orchestrator.job_finished", attribute.String(otelhelper.PipelineIDKey, pipelineID))
	defer func() { finish(span, err) }()

	pending, err := o.persistence.JobRepository().GetByStatus(ctx, pipelineID, inFlightStatuses...)
	if err != nil {
		return false, err
	}

	if len(pending) > 0 {
		return false, nil
	}

	return o.finalize(ctx, pipelineID)
}

// finalize moves an active pipeline to failed when any root job failed and
// to succeeded otherwise. Only the caller that performs the transition
// sends the notification.
func (o *Orchestrator) finalize(ctx context.Context, pipelineID string) (bool, error) {
	jobs, err := o.persistence.JobRepository().GetByPipeline(ctx, pipelineID)
	if err != nil {
		return false, err
	}

	conditions, err := o.persistence.StartConditionRepository().GetByPipeline(ctx, pipelineID)
	if err != nil {
		return false, err
	}

	ids := make([]string, 0, len(jobs))
	statuses := make(map[string]models.JobStatus, len(jobs))

	for _, job := range jobs {
		ids = append(ids, job.ID)
		statuses[job.ID] = job.Status
	}

	status := models.PipelineStatusSucceeded

	for _, root := range graph.Roots(ids, conditions) {
		if statuses[root] == models.JobStatusFailed {
			status = models.PipelineStatusFailed

			break
		}
	}

	pipeline, finalized, err := o.transitionPipeline(ctx, pipelineID,
		func(pipeline *models.Pipeline) bool { return pipeline.IsActive() },
		func(pipeline *models.Pipeline) { pipeline.SetStatus(status, o.timestamp()) },
	)
	if err != nil || !finalized {
		return false, err
	}

	o.logger.InfoContext(ctx, "Pipeline finished", "pipeline_id", pipelineID, "status", status)

	if err := o.notifier.NotifyPipelineFinished(ctx, pipeline); err != nil {
		o.logger.WarnContext(ctx, "Pipeline notification failed", "pipeline_id", pipelineID, "error", err)
	}

	return true, nil
}

// inFlightStatuses are the job statuses that keep a pipeline active.
var inFlightStatuses = []models.JobStatus{
	models.JobStatusWaiting,
	models.JobStatusRunning,
	models.JobStatusStopping,
}
