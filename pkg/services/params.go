package services

import (
	"context"
	"fmt"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence"
	"github.com/go-playground/validator/v10"
)

type Params struct {
	persistence persistence.Persistence
	validate    *validator.Validate
}

// NewParams creates a new params service.
func NewParams(persistence persistence.Persistence) *Params {
	return &Params{
		persistence: persistence,
		validate:    validator.New(),
	}
}

// List returns the params owned by scope.
func (p *Params) List(ctx context.Context, scope models.ParamScope) ([]*models.Param, error) {
	params, err := p.persistence.ParamRepository().GetByScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s params: %w", scope.Kind, err)
	}

	return params, nil
}

func (p *Params) ListGlobal(ctx context.Context) ([]*models.Param, error) {
	return p.List(ctx, models.GlobalScope())
}

func (p *Params) ReconcileGlobalParams(ctx context.Context, desired []ParamInput) ([]*models.Param, error) {
	return p.ReconcileParams(ctx, models.GlobalScope(), desired)
}

func (p *Params) ReconcilePipelineParams(ctx context.Context, pipelineID string, desired []ParamInput) ([]*models.Param, error) {
	if _, err := p.persistence.PipelineRepository().GetByID(ctx, pipelineID); err != nil {
		return nil, err
	}

	return p.ReconcileParams(ctx, models.PipelineScope(pipelineID), desired)
}

func (p *Params) ReconcileJobParams(ctx context.Context, jobID string, desired []ParamInput) ([]*models.Param, error) {
	if _, err := p.persistence.JobRepository().GetByID(ctx, jobID); err != nil {
		return nil, err
	}

	return p.ReconcileParams(ctx, models.JobScope(jobID), desired)
}

// ReconcileParams makes the params of scope match desired: entries with an
// ID update that param, entries without one are created, and params of the
// scope missing from desired are deleted. Every entry is checked before the
// first write, so an invalid list leaves the scope untouched.
func (p *Params) ReconcileParams(ctx context.Context, scope models.ParamScope, desired []ParamInput) ([]*models.Param, error) {
	planned, err := p.plan(ctx, scope, desired)
	if err != nil {
		return nil, err
	}

	repo := p.persistence.ParamRepository()

	kept := make(map[string]bool, len(planned))

	for _, param := range planned {
		if err := repo.Save(ctx, param); err != nil {
			return nil, fmt.Errorf("failed to save param %q: %w", param.Name, err)
		}

		kept[param.ID] = true
	}

	existing, err := repo.GetByScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s params: %w", scope.Kind, err)
	}

	for _, param := range existing {
		if kept[param.ID] {
			continue
		}

		if err := repo.Delete(ctx, param.ID); err != nil && !persistence.IsNotFound(err) {
			return nil, fmt.Errorf("failed to delete param %q: %w", param.Name, err)
		}
	}

	return planned, nil
}

func (p *Params) plan(ctx context.Context, scope models.ParamScope, desired []ParamInput) ([]*models.Param, error) {
	const op = "reconcile_params"

	if err := p.validate.Struct(scope); err != nil {
		return nil, NewValidationError(op, "INVALID_SCOPE", err.Error(), ErrInvalidParam)
	}

	values, err := p.check(op, desired)
	if err != nil {
		return nil, err
	}

	planned := make([]*models.Param, 0, len(desired))

	for i, input := range desired {
		param := &models.Param{Scope: scope}

		if input.ID != "" {
			stored, err := p.persistence.ParamRepository().GetByID(ctx, input.ID)
			if err != nil {
				if persistence.IsNotFound(err) {
					return nil, NewValidationError(op, "UNKNOWN_PARAM", fmt.Sprintf("param %s does not exist", input.ID), ErrInvalidParam)
				}

				return nil, err
			}

			if stored.Scope != scope {
				return nil, NewValidationError(op, "PARAM_SCOPE_MISMATCH",
					fmt.Sprintf("param %s is not owned by this %s", input.ID, scope.Kind), ErrParamScopeMismatch)
			}

			param = stored
		}

		param.Name = input.Name
		param.Type = input.Type
		param.Value = values[i]
		param.Label = input.Label
		param.Description = input.Description
		param.IsRequired = input.IsRequired

		planned = append(planned, param)
	}

	return planned, nil
}

// check validates the desired entries on their own and returns their stored values.
func (p *Params) check(op string, desired []ParamInput) ([]string, error) {
	names := make(map[string]bool, len(desired))
	values := make([]string, 0, len(desired))

	for _, input := range desired {
		if err := p.validate.Struct(input); err != nil {
			return nil, NewValidationError(op, "INVALID_PARAM", fmt.Sprintf("param %q: %v", input.Name, err), ErrInvalidParam)
		}

		if names[input.Name] {
			return nil, NewValidationError(op, "DUPLICATE_PARAM", fmt.Sprintf("param %q appears twice", input.Name), ErrDuplicateParam)
		}

		names[input.Name] = true

		value, err := input.storedValue()
		if err != nil {
			return nil, NewValidationError(op, "INVALID_PARAM", err.Error(), ErrInvalidParam)
		}

		values = append(values, value)
	}

	return values, nil
}

// paramInputs converts stored params back to their editable form.
func paramInputs(params []*models.Param, withIDs bool) []ParamInput {
	inputs := make([]ParamInput, 0, len(params))

	for _, param := range params {
		input := ParamInput{
			Name:        param.Name,
			Type:        param.Type,
			Value:       param.APIValue(),
			Label:       param.Label,
			Description: param.Description,
			IsRequired:  param.IsRequired,
		}

		if withIDs {
			input.ID = param.ID
		}

		inputs = append(inputs, input)
	}

	return inputs
}
