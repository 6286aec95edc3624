package models

import (
	"time"
)

// ParamType is the declared type of a param value.
type ParamType string

const (
	ParamTypeString     ParamType = "string"
	ParamTypeNumber     ParamType = "number"
	ParamTypeBoolean    ParamType = "boolean"
	ParamTypeStringList ParamType = "string_list"
	ParamTypeNumberList ParamType = "number_list"
)

func (t ParamType) IsValid() bool {
	switch t {
	case ParamTypeString, ParamTypeNumber, ParamTypeBoolean, ParamTypeStringList, ParamTypeNumberList:
		return true
	default:
		return false
	}
}

// BooleanTrue is the stored marker of a true boolean param.
const BooleanTrue = "1"

// ScopeKind identifies who owns a param.
type ScopeKind string

const (
	ScopeGlobal   ScopeKind = "global"
	ScopePipeline ScopeKind = "pipeline"
	ScopeJob      ScopeKind = "job"
)

// ParamScope is the owner of a param. Global scope has no owner id.
type ParamScope struct {
	Kind    ScopeKind `json:"kind"               validate:"required,oneof=global pipeline job"`
	OwnerID string    `json:"owner_id,omitempty" validate:"required_unless=Kind global"`
}

func GlobalScope() ParamScope {
	return ParamScope{Kind: ScopeGlobal}
}

func PipelineScope(pipelineID string) ParamScope {
	return ParamScope{Kind: ScopePipeline, OwnerID: pipelineID}
}

func JobScope(jobID string) ParamScope {
	return ParamScope{Kind: ScopeJob, OwnerID: jobID}
}

// PipelineID returns the owning pipeline id, or "" when the scope is not pipeline.
func (s ParamScope) PipelineID() string {
	if s.Kind == ScopePipeline {
		return s.OwnerID
	}

	return ""
}

// JobID returns the owning job id, or "" when the scope is not job.
func (s ParamScope) JobID() string {
	if s.Kind == ScopeJob {
		return s.OwnerID
	}

	return ""
}

// ScopeFromOwners rebuilds a scope from the two storage foreign keys.
func ScopeFromOwners(pipelineID, jobID string) ParamScope {
	switch {
	case jobID != "":
		return JobScope(jobID)
	case pipelineID != "":
		return PipelineScope(pipelineID)
	default:
		return GlobalScope()
	}
}

// Param is a typed, possibly templated configuration value.
type Param struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"        validate:"required,max=255"`
	Type        ParamType  `json:"type"        validate:"required,oneof=string number boolean string_list number_list"`
	Value       string     `json:"value"`
	Label       string     `json:"label"       validate:"max=255"`
	Description string     `json:"description"`
	IsRequired  bool       `json:"is_required"`
	Scope       ParamScope `json:"scope"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// APIValue is the value shown to editors: booleans decoded, everything else raw.
func (p *Param) APIValue() any {
	if p.Type == ParamTypeBoolean {
		return p.Value == BooleanTrue
	}

	return p.Value
}

// DisplayName returns the label, falling back to the name.
func (p *Param) DisplayName() string {
	if p.Label != "" {
		return p.Label
	}

	return p.Name
}
