package services

import (
	"fmt"
	"strconv"

	"github.com/dukex/jobline/pkg/models"
)

// ParamInput is one entry of a desired param list. An empty ID creates a
// param; a set ID updates that param in place.
type ParamInput struct {
	ID          string           `json:"id,omitempty"`
	Name        string           `json:"name"                  validate:"required,max=255"`
	Type        models.ParamType `json:"type"                  validate:"required,oneof=string number boolean string_list number_list"`
	Value       any              `json:"value"`
	Label       string           `json:"label,omitempty"       validate:"max=255"`
	Description string           `json:"description,omitempty"`
	IsRequired  bool             `json:"is_required,omitempty"`
}

// storedValue converts the submitted value to its stored text. Booleans
// are stored as "1" or "0".
func (p ParamInput) storedValue() (string, error) {
	if p.Type == models.ParamTypeBoolean {
		switch v := p.Value.(type) {
		case bool:
			if v {
				return models.BooleanTrue, nil
			}

			return "0", nil
		case string:
			if v == models.BooleanTrue || v == "True" || v == "true" {
				return models.BooleanTrue, nil
			}

			return "0", nil
		case nil:
			return "0", nil
		}
	}

	switch v := p.Value.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return "", fmt.Errorf("%w: param %q has a %T value", ErrInvalidParam, p.Name, p.Value)
	}
}

// ScheduleInput is one entry of a desired schedule list.
type ScheduleInput struct {
	ID   string `json:"id,omitempty"`
	Cron string `json:"cron"         validate:"required"`
}

// StartConditionInput is one desired incoming edge, keyed by its preceding job.
type StartConditionInput struct {
	PrecedingJobID string           `json:"preceding_job_id" validate:"required"`
	Condition      models.Condition `json:"condition"        validate:"required,oneof=success fail whatever"`
}

// PipelineRequest carries pipeline attributes and relations. A nil
// relation list leaves that relation untouched.
type PipelineRequest struct {
	Attributes map[string]any
	Params     []ParamInput
	Schedules  []ScheduleInput
}

// JobRequest carries job attributes and relations. A nil relation list
// leaves that relation untouched.
type JobRequest struct {
	Attributes      map[string]any
	Params          []ParamInput
	StartConditions []StartConditionInput
}

// Definition is the portable form of a pipeline used by import and export.
// Job IDs are only meaningful inside the definition.
type Definition struct {
	Name                   string          `json:"name"`
	EmailsForNotifications string          `json:"emails_for_notifications"`
	RunOnSchedule          bool            `json:"run_on_schedule"`
	Params                 []ParamInput    `json:"params"`
	Schedules              []ScheduleInput `json:"schedules"`
	Jobs                   []JobDefinition `json:"jobs"`
}

type JobDefinition struct {
	ID                  string                `json:"id"`
	Name                string                `json:"name"`
	WorkerClass         string                `json:"worker_class"`
	Params              []ParamInput          `json:"params"`
	HashStartConditions []StartConditionInput `json:"hash_start_conditions"`
}
