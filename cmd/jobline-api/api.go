// Package main provides the Jobline API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/jobline/pkg/orchestrator"
	"github.com/dukex/jobline/pkg/persistence"
	"github.com/dukex/jobline/pkg/services"
	"github.com/dukex/jobline/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger       *slog.Logger
	persistence  persistence.Persistence
	orchestrator *orchestrator.Orchestrator
	validate     *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	orchestrator *orchestrator.Orchestrator,
) *API {
	return &API{
		logger:       logger,
		persistence:  persistence,
		orchestrator: orchestrator,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	paramService := services.NewParams(a.persistence)
	jobService := services.NewJobs(a.persistence)
	pipelineService := services.NewPipelines(a.persistence)

	handlers := web.NewAPIHandlers(pipelineService, jobService, paramService, a.orchestrator, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Jobline API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
