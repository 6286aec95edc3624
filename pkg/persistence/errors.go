// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrPipelineNotFound indicates a pipeline was not found by the given identifier.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrJobNotFound indicates a job was not found by the given identifier.
	ErrJobNotFound = errors.New("job not found")

	// ErrParamNotFound indicates a param was not found by the given identifier.
	ErrParamNotFound = errors.New("param not found")

	// ErrStartConditionNotFound indicates a start condition was not found.
	ErrStartConditionNotFound = errors.New("start condition not found")

	// ErrScheduleNotFound indicates a schedule was not found by the given identifier.
	ErrScheduleNotFound = errors.New("schedule not found")
)

// EntityError wraps repository errors with the entity and operation involved.
type EntityError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Update", "Delete")
	Entity string // Entity kind (e.g., "pipeline", "job")
	ID     string // Entity ID if applicable
	Err    error  // Underlying error
}

func (e *EntityError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Entity, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for entity errors.
func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewEntityError creates a new entity error with context.
func NewEntityError(op, entity, id string, err error) *EntityError {
	return &EntityError{
		Op:     op,
		Entity: entity,
		ID:     id,
		Err:    err,
	}
}

// IsPipelineNotFound checks if an error indicates a pipeline was not found.
func IsPipelineNotFound(err error) bool {
	return errors.Is(err, ErrPipelineNotFound)
}

// IsJobNotFound checks if an error indicates a job was not found.
func IsJobNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}

// IsParamNotFound checks if an error indicates a param was not found.
func IsParamNotFound(err error) bool {
	return errors.Is(err, ErrParamNotFound)
}

// IsNotFound checks if an error indicates any entity was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPipelineNotFound) ||
		errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrParamNotFound) ||
		errors.Is(err, ErrStartConditionNotFound) ||
		errors.Is(err, ErrScheduleNotFound)
}
