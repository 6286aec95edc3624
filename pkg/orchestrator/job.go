package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/jobline/pkg/dispatch"
	"github.com/dukex/jobline/pkg/graph"
	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/otelhelper"
	"github.com/dukex/jobline/pkg/params"
	"go.opentelemetry.io/otel/attribute"
)

// GetReady validates every job param and moves the job to waiting. A bad
// param is logged and reported as false, leaving the job unchanged.
func (o *Orchestrator) GetReady(ctx context.Context, jobID string) (ready bool, err error) {
	ctx, span := o.span(ctx, "orchestrator.get_ready", attribute.String(otelhelper.JobIDKey, jobID))
	defer func() { finish(span, err) }()

	job, err := o.persistence.JobRepository().GetByID(ctx, jobID)
	if err != nil {
		return false, err
	}

	if !job.Status.CanGetReady() {
		return false, nil
	}

	logger := o.jobLogger(job)

	chain, err := o.scopeChain(ctx, job.PipelineID)
	if err != nil {
		return false, err
	}

	jobParams, err := o.persistence.ParamRepository().GetByScope(ctx, models.JobScope(job.ID))
	if err != nil {
		return false, err
	}

	for _, param := range jobParams {
		if _, resolveErr := o.resolver.Resolve(param, chain); resolveErr != nil {
			logger.ErrorContext(ctx, "Bad job param", "param", param.DisplayName(), "error", resolveErr)

			return false, nil
		}
	}

	_, ready, err = o.transitionJob(ctx, jobID,
		func(job *models.Job) bool { return job.Status.CanGetReady() },
		func(job *models.Job) { job.SetStatus(models.JobStatusWaiting, o.timestamp()) },
	)
	if ready {
		logger.InfoContext(ctx, "Job waiting")
	}

	return ready, err
}

// StartJob runs a waiting job once every incoming edge passes. A contradicted
// edge fails the job and cascades the failure to its dependents.
func (o *Orchestrator) StartJob(ctx context.Context, jobID string) (started bool, err error) {
	ctx, span := o.span(ctx, "orchestrator.start_job", attribute.String(otelhelper.JobIDKey, jobID))
	defer func() { finish(span, err) }()

	job, err := o.persistence.JobRepository().GetByID(ctx, jobID)
	if err != nil {
		return false, err
	}

	if job.Status != models.JobStatusWaiting {
		return false, nil
	}

	edges, err := o.incomingEdges(ctx, job.ID)
	if err != nil {
		return false, err
	}

	switch graph.Evaluate(edges) {
	case graph.Block:
		return false, nil
	case graph.HardFail:
		o.jobLogger(job).InfoContext(ctx, "Start condition contradicted")

		return false, o.failWaiting(ctx, job.ID)
	}

	started, err = o.run(ctx, job, isWaiting)

	var configErr *ConfigurationError
	if errors.As(err, &configErr) {
		o.jobLogger(job).ErrorContext(ctx, "Job cannot run", "error", err)

		return false, o.failWaiting(ctx, job.ID)
	}

	return started, err
}

// RunJob resets the job and dispatches its first worker, ignoring the
// dependency graph. Jobs with workers in flight are refused.
func (o *Orchestrator) RunJob(ctx context.Context, jobID string) (err error) {
	ctx, span := o.span(ctx, "orchestrator.run_job", attribute.String(otelhelper.JobIDKey, jobID))
	defer func() { finish(span, err) }()

	job, err := o.persistence.JobRepository().GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	ran, err := o.run(ctx, job, notInFlight)
	if err != nil {
		return err
	}

	if !ran {
		return fmt.Errorf("%w: %s", ErrJobActive, jobID)
	}

	return nil
}

// StopJob fails a waiting job and moves a running job to stopping. Running
// workers are not interrupted.
func (o *Orchestrator) StopJob(ctx context.Context, jobID string) (stopped bool, err error) {
	ctx, span := o.span(ctx, "orchestrator.stop_job", attribute.String(otelhelper.JobIDKey, jobID))
	defer func() { finish(span, err) }()

	job, stopped, err := o.transitionJob(ctx, jobID,
		func(job *models.Job) bool {
			return job.Status == models.JobStatusWaiting || job.Status == models.JobStatusRunning
		},
		func(job *models.Job) {
			if job.Status == models.JobStatusWaiting {
				job.SetStatus(models.JobStatusFailed, o.timestamp())
			} else {
				job.SetStatus(models.JobStatusStopping, o.timestamp())
			}
		},
	)
	if stopped {
		o.jobLogger(job).InfoContext(ctx, "Job stopped", "status", job.Status)
	}

	return stopped, err
}

// Enqueue dispatches one more worker for a running job. The enqueued counter
// is reserved before dispatch so a fast worker cannot finalize the job early,
// and released when dispatch fails.
func (o *Orchestrator) Enqueue(
	ctx context.Context,
	jobID string,
	workerClass string,
	values map[string]params.Value,
	delay time.Duration,
) (handle dispatch.TaskHandle, enqueued bool, err error) {
	ctx, span := o.span(ctx, "orchestrator.enqueue",
		attribute.String(otelhelper.JobIDKey, jobID),
		attribute.String(otelhelper.WorkerClassKey, workerClass),
	)
	defer func() { finish(span, err) }()

	job, reserved, err := o.transitionJob(ctx, jobID, isRunning, func(job *models.Job) {
		job.EnqueuedWorkersCount++
	})
	if err != nil || !reserved {
		return dispatch.TaskHandle{}, false, err
	}

	handle, err = o.dispatchReserved(ctx, job, workerClass, values, delay)
	if err != nil {
		return dispatch.TaskHandle{}, false, err
	}

	return handle, true, nil
}

// dispatchReserved dispatches a worker for a slot already counted in
// EnqueuedWorkersCount. The slot is released when dispatch fails.
func (o *Orchestrator) dispatchReserved(
	ctx context.Context,
	job *models.Job,
	workerClass string,
	values map[string]params.Value,
	delay time.Duration,
) (dispatch.TaskHandle, error) {
	logger := o.jobLogger(job)

	pipeline, err := o.persistence.PipelineRepository().GetByID(ctx, job.PipelineID)
	if err != nil {
		return dispatch.TaskHandle{}, errors.Join(err, o.release(ctx, job.ID))
	}

	request := dispatch.Request{
		TaskName:    dispatch.TaskName(pipeline.Name, job.Name, workerClass),
		PipelineID:  job.PipelineID,
		JobID:       job.ID,
		WorkerClass: workerClass,
		Params:      values,
		Delay:       delay,
	}

	handle, err := o.dispatcher.Dispatch(ctx, request)
	if err != nil {
		logger.ErrorContext(ctx, "Dispatch failed", "task_name", request.TaskName, "error", err)

		err = fmt.Errorf("failed to dispatch %s: %w", request.TaskName, err)

		return dispatch.TaskHandle{}, errors.Join(err, o.release(ctx, job.ID))
	}

	logger.InfoContext(ctx, "Worker enqueued", "task_name", handle.TaskName, "dispatched_worker", workerClass)

	return handle, nil
}

// WorkerSucceeded counts a successful worker and finalizes the job when it
// was the last one outstanding.
func (o *Orchestrator) WorkerSucceeded(ctx context.Context, jobID string) error {
	return o.workerFinished(ctx, jobID, true)
}

// WorkerFailed counts a failed worker and finalizes the job when it was the
// last one outstanding. A job with any failed worker fails.
func (o *Orchestrator) WorkerFailed(ctx context.Context, jobID string) error {
	return o.workerFinished(ctx, jobID, false)
}

func (o *Orchestrator) workerFinished(ctx context.Context, jobID string, succeeded bool) (err error) {
	ctx, span := o.span(ctx, "orchestrator.worker_finished",
		attribute.String(otelhelper.JobIDKey, jobID),
		attribute.Bool("jobline.worker.succeeded", succeeded),
	)
	defer func() { finish(span, err) }()

	var finalized bool

	job, counted, err := o.transitionJob(ctx, jobID,
		hasOutstandingWorkers,
		func(job *models.Job) {
			if succeeded {
				job.SucceededWorkersCount++
			} else {
				job.FailedWorkersCount++
			}

			if job.AllWorkersFinished() {
				o.settle(job)
				finalized = true
			}
		},
	)
	if err != nil {
		return err
	}

	if !counted {
		o.logger.WarnContext(ctx, "Ignoring worker result without an outstanding worker", "job_id", jobID, "succeeded", succeeded)

		return nil
	}

	if !finalized {
		return nil
	}

	o.jobLogger(job).InfoContext(ctx, "Job finished", "status", job.Status)

	return o.cascade(ctx, job)
}

// settle sets the terminal status of a job whose workers all reported back.
func (o *Orchestrator) settle(job *models.Job) {
	status := models.JobStatusSucceeded
	if job.FailedWorkersCount > 0 {
		status = models.JobStatusFailed
	}

	job.SetStatus(status, o.timestamp())
}

// release returns a reserved enqueue slot. When the released slot was the
// only thing keeping the job open the job is finalized here.
func (o *Orchestrator) release(ctx context.Context, jobID string) error {
	var finalized bool

	job, released, err := o.transitionJob(ctx, jobID,
		func(job *models.Job) bool { return job.EnqueuedWorkersCount > 0 },
		func(job *models.Job) {
			job.EnqueuedWorkersCount--

			if job.Status.AcceptsWorkerResults() && job.EnqueuedWorkersCount > 0 && job.AllWorkersFinished() {
				o.settle(job)
				finalized = true
			}
		},
	)
	if err != nil || !released || !finalized {
		return err
	}

	o.jobLogger(job).InfoContext(ctx, "Job finished", "status", job.Status)

	return o.cascade(ctx, job)
}

// failWaiting fails a waiting job and cascades.
func (o *Orchestrator) failWaiting(ctx context.Context, jobID string) error {
	job, failed, err := o.transitionJob(ctx, jobID, isWaiting, func(job *models.Job) {
		job.SetStatus(models.JobStatusFailed, o.timestamp())
	})
	if err != nil || !failed {
		return err
	}

	o.jobLogger(job).InfoContext(ctx, "Job failed without running")

	return o.cascade(ctx, job)
}

// run resets the counters, marks the job running with its own worker already
// reserved, then dispatches that worker with the resolved params. allowed
// guards the transition.
func (o *Orchestrator) run(ctx context.Context, job *models.Job, allowed func(*models.Job) bool) (bool, error) {
	values, err := o.resolveJobParams(ctx, job)
	if err != nil {
		return false, err
	}

	running, ok, err := o.transitionJob(ctx, job.ID, allowed, func(job *models.Job) {
		job.ResetCounters()
		job.EnqueuedWorkersCount = 1
		job.SetStatus(models.JobStatusRunning, o.timestamp())
	})
	if err != nil || !ok {
		return false, err
	}

	o.jobLogger(running).InfoContext(ctx, "Job running")

	if _, err := o.dispatchReserved(ctx, running, running.WorkerClass, values, 0); err != nil {
		return true, err
	}

	return true, nil
}

// cascade starts the dependents of a finalized job, then lets the pipeline
// check whether it finished. Failures are collected so one bad dependent
// does not stop the others.
func (o *Orchestrator) cascade(ctx context.Context, job *models.Job) error {
	outgoing, err := o.persistence.StartConditionRepository().GetByPrecedingJob(ctx, job.ID)
	if err != nil {
		return err
	}

	var errs []error

	for _, dependentID := range graph.Dependents(job.ID, outgoing) {
		if _, err := o.StartJob(ctx, dependentID); err != nil {
			o.logger.ErrorContext(ctx, "Failed to start dependent job",
				"pipeline_id", job.PipelineID,
				"job_id", dependentID,
				"preceding_job_id", job.ID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}

	if _, err := o.JobFinished(ctx, job.PipelineID); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// incomingEdges pairs the job's start conditions with the current status
// of each predecessor.
func (o *Orchestrator) incomingEdges(ctx context.Context, jobID string) ([]graph.Edge, error) {
	conditions, err := o.persistence.StartConditionRepository().GetByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if len(conditions) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(conditions))
	for _, sc := range conditions {
		ids = append(ids, sc.PrecedingJobID)
	}

	predecessors, err := o.persistence.JobRepository().GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	statuses := make(map[string]models.JobStatus, len(predecessors))
	for _, predecessor := range predecessors {
		statuses[predecessor.ID] = predecessor.Status
	}

	edges := make([]graph.Edge, 0, len(conditions))
	for _, sc := range conditions {
		edges = append(edges, graph.Edge{
			PrecedingJobID:  sc.PrecedingJobID,
			Condition:       sc.Condition,
			PrecedingStatus: statuses[sc.PrecedingJobID],
		})
	}

	return edges, nil
}

func isWaiting(job *models.Job) bool {
	return job.Status == models.JobStatusWaiting
}

func isRunning(job *models.Job) bool {
	return job.Status == models.JobStatusRunning
}

// notInFlight reports whether the job has no workers in flight.
func notInFlight(job *models.Job) bool {
	return !job.Status.AcceptsWorkerResults()
}

// hasOutstandingWorkers reports whether the job is waiting on at least one
// dispatched worker that has not reported back.
func hasOutstandingWorkers(job *models.Job) bool {
	return job.Status.AcceptsWorkerResults() && job.FinishedWorkersCount() < job.EnqueuedWorkersCount
}
