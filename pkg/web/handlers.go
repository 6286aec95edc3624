package web

import (
	"net/http"
	"time"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/orchestrator"
	"github.com/dukex/jobline/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	pipelines    *services.Pipelines
	jobs         *services.Jobs
	params       *services.Params
	orchestrator *orchestrator.Orchestrator
	validator    *validator.Validate
}

func NewAPIHandlers(
	pipelines *services.Pipelines,
	jobs *services.Jobs,
	params *services.Params,
	orchestrator *orchestrator.Orchestrator,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		pipelines:    pipelines,
		jobs:         jobs,
		params:       params,
		orchestrator: orchestrator,
		validator:    validator,
	}
}

// Register mounts every route on app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	p := app.Group("/pipelines")
	p.Get("/", h.GetPipelines)
	p.Post("/", h.CreatePipeline)
	p.Post("/import", h.CreatePipelineFromDefinition)
	p.Get("/:id", h.GetPipeline)
	p.Patch("/:id", h.UpdatePipeline)
	p.Delete("/:id", h.DeletePipeline)
	p.Post("/:id/start", h.StartPipeline)
	p.Post("/:id/stop", h.StopPipeline)
	p.Patch("/:id/run_on_schedule", h.SetRunOnSchedule)
	p.Get("/:id/export", h.ExportPipeline)
	p.Post("/:id/import", h.ImportPipeline)
	p.Get("/:id/jobs", h.GetPipelineJobs)
	p.Post("/:id/jobs", h.CreateJob)

	j := app.Group("/jobs")
	j.Get("/:id", h.GetJob)
	j.Patch("/:id", h.UpdateJob)
	j.Delete("/:id", h.DeleteJob)
	j.Post("/:id/start", h.StartJob)
	j.Post("/:id/workers", h.EnqueueWorker)
	j.Post("/:id/workers/succeeded", h.WorkerSucceeded)
	j.Post("/:id/workers/failed", h.WorkerFailed)

	g := app.Group("/global_params")
	g.Get("/", h.GetGlobalParams)
	g.Put("/", h.UpdateGlobalParams)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.pipelines.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Jobline API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Jobline API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Pipelines

func (h *APIHandlers) GetPipelines(c fiber.Ctx) error {
	pipelines, err := h.pipelines.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(pipelines)
}

func (h *APIHandlers) GetPipeline(c fiber.Ctx) error {
	pipeline, err := h.pipelines.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.pipelineResponse(c, fiber.StatusOK, pipeline)
}

func (h *APIHandlers) CreatePipeline(c fiber.Ctx) error {
	req, err := ParsePipelineRequest(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	pipeline, err := h.pipelines.Create(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.pipelineResponse(c, fiber.StatusCreated, pipeline)
}

func (h *APIHandlers) UpdatePipeline(c fiber.Ctx) error {
	req, err := ParsePipelineRequest(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	pipeline, err := h.pipelines.Update(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.pipelineResponse(c, fiber.StatusOK, pipeline)
}

func (h *APIHandlers) DeletePipeline(c fiber.Ctx) error {
	if err := h.pipelines.Destroy(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SetRunOnSchedule(c fiber.Ctx) error {
	var req RunOnScheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	pipeline, err := h.pipelines.SetRunOnSchedule(c.Context(), c.Params("id"), *req.RunOnSchedule)
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.pipelineResponse(c, fiber.StatusOK, pipeline)
}

func (h *APIHandlers) StartPipeline(c fiber.Ctx) error {
	id := c.Params("id")

	started, err := h.orchestrator.StartPipeline(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if !started {
		return conflict(c, "pipeline cannot start")
	}

	return h.pipelineByID(c, fiber.StatusAccepted, id)
}

func (h *APIHandlers) StopPipeline(c fiber.Ctx) error {
	id := c.Params("id")

	stopped, err := h.orchestrator.StopPipeline(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if !stopped {
		return conflict(c, "pipeline is not running")
	}

	return h.pipelineByID(c, fiber.StatusAccepted, id)
}

func (h *APIHandlers) ExportPipeline(c fiber.Ctx) error {
	definition, err := h.pipelines.Export(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) ImportPipeline(c fiber.Ctx) error {
	definition, err := services.ParseDefinition(c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	id := c.Params("id")

	if err := h.pipelines.Import(c.Context(), id, definition); err != nil {
		return handleServiceError(c, err)
	}

	return h.pipelineByID(c, fiber.StatusOK, id)
}

func (h *APIHandlers) CreatePipelineFromDefinition(c fiber.Ctx) error {
	definition, err := services.ParseDefinition(c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	pipeline, err := h.pipelines.CreateFromDefinition(c.Context(), definition)
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.pipelineResponse(c, fiber.StatusCreated, pipeline)
}

func (h *APIHandlers) pipelineByID(c fiber.Ctx, status int, id string) error {
	pipeline, err := h.pipelines.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.pipelineResponse(c, status, pipeline)
}

func (h *APIHandlers) pipelineResponse(c fiber.Ctx, status int, pipeline *models.Pipeline) error {
	params, err := h.pipelines.Params(c.Context(), pipeline.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	schedules, err := h.pipelines.Schedules(c.Context(), pipeline.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(status).JSON(PipelineResponse{
		Pipeline:  pipeline,
		Params:    TransformParams(params),
		Schedules: schedules,
	})
}

// Jobs

func (h *APIHandlers) GetPipelineJobs(c fiber.Ctx) error {
	jobs, err := h.jobs.ListByPipeline(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(jobs)
}

func (h *APIHandlers) GetJob(c fiber.Ctx) error {
	job, err := h.jobs.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.jobResponse(c, fiber.StatusOK, job)
}

func (h *APIHandlers) CreateJob(c fiber.Ctx) error {
	req, err := ParseJobRequest(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	job, err := h.jobs.Create(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.jobResponse(c, fiber.StatusCreated, job)
}

func (h *APIHandlers) UpdateJob(c fiber.Ctx) error {
	req, err := ParseJobRequest(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	job, err := h.jobs.Update(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.jobResponse(c, fiber.StatusOK, job)
}

func (h *APIHandlers) DeleteJob(c fiber.Ctx) error {
	if err := h.jobs.Destroy(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// StartJob runs one job of an idle or finished pipeline on its own.
func (h *APIHandlers) StartJob(c fiber.Ctx) error {
	job, err := h.jobs.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	started, err := h.orchestrator.StartSingleJob(c.Context(), job.PipelineID, job.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	if !started {
		return conflict(c, "job cannot start")
	}

	job, err = h.jobs.Get(c.Context(), job.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.jobResponse(c, fiber.StatusAccepted, job)
}

func (h *APIHandlers) EnqueueWorker(c fiber.Ctx) error {
	var req EnqueueRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	handle, enqueued, err := h.orchestrator.Enqueue(
		c.Context(),
		c.Params("id"),
		req.WorkerClass,
		req.Params,
		time.Duration(req.DelaySeconds)*time.Second,
	)
	if err != nil {
		return handleServiceError(c, err)
	}

	if !enqueued {
		return conflict(c, "job is not running")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"task_name":  handle.TaskName,
		"not_before": handle.NotBefore,
	})
}

func (h *APIHandlers) WorkerSucceeded(c fiber.Ctx) error {
	if err := h.orchestrator.WorkerSucceeded(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) WorkerFailed(c fiber.Ctx) error {
	if err := h.orchestrator.WorkerFailed(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) jobResponse(c fiber.Ctx, status int, job *models.Job) error {
	params, err := h.jobs.Params(c.Context(), job.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	conditions, err := h.jobs.StartConditions(c.Context(), job.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(status).JSON(JobResponse{
		Job:             job,
		Params:          TransformParams(params),
		StartConditions: conditions,
	})
}

// Global params

func (h *APIHandlers) GetGlobalParams(c fiber.Ctx) error {
	params, err := h.params.ListGlobal(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformParams(params))
}

func (h *APIHandlers) UpdateGlobalParams(c fiber.Ctx) error {
	var req GlobalParamsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	params, err := h.params.ReconcileGlobalParams(c.Context(), nonNil(req.Params))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformParams(params))
}
