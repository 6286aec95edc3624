// Package services implements pipeline and job authoring: editing,
// reconciliation of params, schedules and start conditions, import and export.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest          = errors.New("invalid request")
	ErrInvalidParam            = errors.New("invalid param")
	ErrDuplicateParam          = errors.New("duplicate param name")
	ErrParamScopeMismatch      = errors.New("param belongs to another scope")
	ErrInvalidStartCondition   = errors.New("invalid start condition")
	ErrCrossPipelineDependency = errors.New("start condition crosses pipelines")
	ErrCyclicDependency        = errors.New("start conditions form a cycle")
	ErrInvalidDefinition       = errors.New("invalid pipeline definition")
	ErrUnknownSchedule         = errors.New("schedule belongs to another pipeline")

	// Business Logic Conflicts (409 Conflict).
	ErrPipelineBlocked = errors.New("pipeline is scheduled or active")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidParam) ||
		errors.Is(err, ErrDuplicateParam) ||
		errors.Is(err, ErrParamScopeMismatch) ||
		errors.Is(err, ErrInvalidStartCondition) ||
		errors.Is(err, ErrCrossPipelineDependency) ||
		errors.Is(err, ErrCyclicDependency) ||
		errors.Is(err, ErrInvalidDefinition) ||
		errors.Is(err, ErrUnknownSchedule) ||
		errors.Is(err, models.ErrUnknownAttribute) ||
		errors.Is(err, models.ErrInvalidAttribute) ||
		errors.Is(err, models.ErrInvalidSchedule)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrPipelineBlocked)
}

// IsNotFound checks if an error should return HTTP 404.
func IsNotFound(err error) bool {
	return persistence.IsNotFound(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
