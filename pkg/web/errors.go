package web

import (
	"errors"

	"github.com/dukex/jobline/pkg/orchestrator"
	"github.com/dukex/jobline/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

// handleServiceError maps service, persistence and orchestrator errors to problems.
func handleServiceError(c fiber.Ctx, err error) error {
	var configErr *orchestrator.ConfigurationError

	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case errors.As(err, &configErr):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("configuration_error").
			WithDetail(configErr.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case services.IsConflictError(err), errors.Is(err, orchestrator.ErrJobActive):
		return conflict(c, err.Error())

	case services.IsNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("not_found").
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	default:
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
