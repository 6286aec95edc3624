// Package orchestrator runs the job and pipeline state machines.
//
// Every job transition is an atomic read-modify-write through
// persistence.JobRepository.Update, so concurrent worker callbacks for the
// same job are serialized and a job finalizes exactly once. Pipeline
// transitions use PipelineRepository.Update the same way.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/jobline/pkg/dispatch"
	"github.com/dukex/jobline/pkg/log"
	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/notify"
	"github.com/dukex/jobline/pkg/otelhelper"
	"github.com/dukex/jobline/pkg/params"
	"github.com/dukex/jobline/pkg/persistence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// errSkip aborts an atomic update whose precondition no longer holds.
var errSkip = errors.New("transition not applicable")

var (
	// ErrJobActive is returned when a manual run targets a job with workers in flight.
	ErrJobActive = errors.New("job has workers in flight")

	// ErrJobOutsidePipeline is returned when a job does not belong to the given pipeline.
	ErrJobOutsidePipeline = errors.New("job does not belong to pipeline")
)

type Orchestrator struct {
	persistence persistence.Persistence
	dispatcher  dispatch.Dispatcher
	notifier    notify.Notifier
	resolver    *params.Resolver
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger.With("module", "orchestrator")
	}
}

// WithClock sets the clock used for status timestamps and date helpers.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
		o.resolver = params.NewResolver(params.WithClock(now))
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

func New(
	persistence persistence.Persistence,
	dispatcher dispatch.Dispatcher,
	notifier notify.Notifier,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		persistence: persistence,
		dispatcher:  dispatcher,
		notifier:    notifier,
		resolver:    params.NewResolver(),
		logger:      log.WithModule("orchestrator"),
		tracer:      otel.Tracer("github.com/dukex/jobline/pkg/orchestrator"),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// IsBlocked reports whether a schedule trigger must leave the pipeline alone.
func (o *Orchestrator) IsBlocked(pipeline *models.Pipeline) bool {
	return pipeline.IsBlocked()
}

func (o *Orchestrator) timestamp() time.Time {
	return o.now().UTC()
}

func (o *Orchestrator) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otelhelper.StartSpan(ctx, o.tracer, name, attrs...)
}

// finish ends span, recording err when set.
func finish(span trace.Span, err error) {
	if err != nil {
		otelhelper.SetError(span, err)
	}

	span.End()
}

func (o *Orchestrator) jobLogger(job *models.Job) *slog.Logger {
	return o.logger.With(
		"pipeline_id", job.PipelineID,
		"job_id", job.ID,
		"worker_class", job.WorkerClass,
	)
}

// transitionJob applies change to the job when allowed accepts its current
// state. It reports false, with no error, when allowed rejected it.
func (o *Orchestrator) transitionJob(
	ctx context.Context,
	jobID string,
	allowed func(job *models.Job) bool,
	change func(job *models.Job),
) (*models.Job, bool, error) {
	job, err := o.persistence.JobRepository().Update(ctx, jobID, func(job *models.Job) error {
		if !allowed(job) {
			return errSkip
		}

		change(job)

		return nil
	})
	if errors.Is(err, errSkip) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	return job, true, nil
}

func (o *Orchestrator) transitionPipeline(
	ctx context.Context,
	pipelineID string,
	allowed func(pipeline *models.Pipeline) bool,
	change func(pipeline *models.Pipeline),
) (*models.Pipeline, bool, error) {
	pipeline, err := o.persistence.PipelineRepository().Update(ctx, pipelineID, func(pipeline *models.Pipeline) error {
		if !allowed(pipeline) {
			return errSkip
		}

		change(pipeline)

		return nil
	})
	if errors.Is(err, errSkip) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	return pipeline, true, nil
}

// scopeChain loads the params visible to the job's params.
func (o *Orchestrator) scopeChain(ctx context.Context, pipelineID string) (params.ScopeChain, error) {
	repo := o.persistence.ParamRepository()

	global, err := repo.GetByScope(ctx, models.GlobalScope())
	if err != nil {
		return params.ScopeChain{}, err
	}

	pipeline, err := repo.GetByScope(ctx, models.PipelineScope(pipelineID))
	if err != nil {
		return params.ScopeChain{}, err
	}

	return params.ScopeChain{Global: global, Pipeline: pipeline}, nil
}

// resolveJobParams resolves the job's own params into the worker payload.
func (o *Orchestrator) resolveJobParams(ctx context.Context, job *models.Job) (map[string]params.Value, error) {
	chain, err := o.scopeChain(ctx, job.PipelineID)
	if err != nil {
		return nil, err
	}

	jobParams, err := o.persistence.ParamRepository().GetByScope(ctx, models.JobScope(job.ID))
	if err != nil {
		return nil, err
	}

	values, err := o.resolver.ResolveAll(jobParams, chain)
	if err != nil {
		return nil, &ConfigurationError{JobID: job.ID, Err: err}
	}

	return values, nil
}
