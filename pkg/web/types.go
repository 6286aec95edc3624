// Package web provides HTTP request and response types for the pipeline API.
package web

import (
	"encoding/json"
	"fmt"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/services"
)

// pipelineRelations picks the relation lists out of a pipeline body. A nil
// pointer means the key was absent.
type pipelineRelations struct {
	Params    *[]services.ParamInput    `json:"params"`
	Schedules *[]services.ScheduleInput `json:"schedules"`
}

type jobRelations struct {
	Params          *[]services.ParamInput          `json:"params"`
	StartConditions *[]services.StartConditionInput `json:"hash_start_conditions"`
}

// ParsePipelineRequest splits a pipeline body into attributes and relations.
func ParsePipelineRequest(body []byte) (services.PipelineRequest, error) {
	var req services.PipelineRequest

	if err := json.Unmarshal(body, &req.Attributes); err != nil {
		return req, fmt.Errorf("invalid JSON format: %w", err)
	}

	var relations pipelineRelations
	if err := json.Unmarshal(body, &relations); err != nil {
		return req, fmt.Errorf("invalid relations: %w", err)
	}

	if relations.Params != nil {
		req.Params = nonNil(*relations.Params)
	}

	if relations.Schedules != nil {
		req.Schedules = nonNil(*relations.Schedules)
	}

	return req, nil
}

// ParseJobRequest splits a job body into attributes and relations.
func ParseJobRequest(body []byte) (services.JobRequest, error) {
	var req services.JobRequest

	if err := json.Unmarshal(body, &req.Attributes); err != nil {
		return req, fmt.Errorf("invalid JSON format: %w", err)
	}

	var relations jobRelations
	if err := json.Unmarshal(body, &relations); err != nil {
		return req, fmt.Errorf("invalid relations: %w", err)
	}

	if relations.Params != nil {
		req.Params = nonNil(*relations.Params)
	}

	if relations.StartConditions != nil {
		req.StartConditions = nonNil(*relations.StartConditions)
	}

	return req, nil
}

// nonNil keeps an explicit empty list distinct from an absent one.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}

	return items
}

// RunOnScheduleRequest toggles schedule-driven runs.
type RunOnScheduleRequest struct {
	RunOnSchedule *bool `json:"run_on_schedule" validate:"required"`
}

// GlobalParamsRequest replaces the global params.
type GlobalParamsRequest struct {
	Params []services.ParamInput `json:"params" validate:"dive"`
}

// EnqueueRequest asks for one more worker of a running job.
type EnqueueRequest struct {
	WorkerClass  string         `json:"worker_class"  validate:"required,max=255"`
	Params       map[string]any `json:"params"`
	DelaySeconds int            `json:"delay_seconds" validate:"min=0"`
}

// WorkerResultRequest is the optional body of a worker callback.
type WorkerResultRequest struct {
	TaskName string `json:"task_name"`
	Error    string `json:"error"`
}

// ParamResponse shows a param with its editable value.
type ParamResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Type        models.ParamType `json:"type"`
	Value       any              `json:"value"`
	Label       string           `json:"label"`
	Description string           `json:"description"`
	IsRequired  bool             `json:"is_required"`
}

func TransformParams(params []*models.Param) []ParamResponse {
	response := make([]ParamResponse, 0, len(params))

	for _, param := range params {
		response = append(response, ParamResponse{
			ID:          param.ID,
			Name:        param.Name,
			Type:        param.Type,
			Value:       param.APIValue(),
			Label:       param.Label,
			Description: param.Description,
			IsRequired:  param.IsRequired,
		})
	}

	return response
}

type PipelineResponse struct {
	*models.Pipeline

	Params    []ParamResponse    `json:"params"`
	Schedules []*models.Schedule `json:"schedules"`
}

type JobResponse struct {
	*models.Job

	Params          []ParamResponse          `json:"params"`
	StartConditions []*models.StartCondition `json:"hash_start_conditions"`
}
