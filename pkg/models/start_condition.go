package models

import "time"

// Condition is the predecessor outcome an edge requires.
type Condition string

const (
	ConditionSuccess  Condition = "success"
	ConditionFail     Condition = "fail"
	ConditionWhatever Condition = "whatever"
)

func (c Condition) IsValid() bool {
	return c == ConditionSuccess || c == ConditionFail || c == ConditionWhatever
}

// StartCondition is a directed edge PrecedingJobID -> JobID.
type StartCondition struct {
	ID             string    `json:"id"`
	JobID          string    `json:"job_id"           validate:"required"`
	PrecedingJobID string    `json:"preceding_job_id" validate:"required,nefield=JobID"`
	Condition      Condition `json:"condition"        validate:"required,oneof=success fail whatever"`
	CreatedAt      time.Time `json:"created_at"`
}

// Value encodes the edge as "preceding_job_id,condition".
func (sc *StartCondition) Value() string {
	return sc.PrecedingJobID + "," + string(sc.Condition)
}
