// Package params resolves typed, possibly templated param values.
//
// A param value may embed inline expressions delimited by "{%" and "%}".
// Each span is evaluated against the names visible from the param's scope and
// replaced by the text of its result. The expanded text is then coerced to the
// declared param type.
package params

import (
	"regexp"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/dukex/jobline/pkg/models"
)

var spanPattern = regexp.MustCompile(`{%.+?%}`)

// ScopeChain holds the params that may be referenced from a narrower scope.
// Global params are visible to pipeline and job params; pipeline params are
// visible to job params of that pipeline.
type ScopeChain struct {
	Global   []*models.Param
	Pipeline []*models.Param
}

type Option func(*Resolver)

// WithClock overrides the clock used by the date helpers.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// Resolver turns stored param values into typed values.
type Resolver struct {
	now       func() time.Time
	functions map[string]function.Function
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{now: time.Now}

	for _, opt := range opts {
		opt(r)
	}

	r.functions = functions(r.now)

	return r
}

// Resolve returns the typed value of param. Booleans are decided on the raw
// stored value with no expansion. Any other type is expanded first.
func (r *Resolver) Resolve(param *models.Param, chain ScopeChain) (Value, error) {
	if param.Type == models.ParamTypeBoolean {
		return param.Value == models.BooleanTrue, nil
	}

	variables, err := r.namespace(param.Scope.Kind, chain)
	if err != nil {
		return nil, err
	}

	expanded, err := r.expand(param.Value, variables)
	if err != nil {
		return nil, err
	}

	value := Coerce(param.Type, expanded)
	if err := checkFinite(value); err != nil {
		return nil, &EvaluationError{Expression: param.Value, Err: err}
	}

	return value, nil
}

// ResolveAll resolves every param, keyed by name. A later param with the same
// name overrides an earlier one.
func (r *Resolver) ResolveAll(params []*models.Param, chain ScopeChain) (map[string]Value, error) {
	values := make(map[string]Value, len(params))

	for _, param := range params {
		value, err := r.Resolve(param, chain)
		if err != nil {
			return nil, err
		}

		values[param.Name] = value
	}

	return values, nil
}

func (r *Resolver) expand(text string, variables map[string]cty.Value) (string, error) {
	ctx := &hcl.EvalContext{
		Variables: variables,
		Functions: r.functions,
	}

	var firstErr error

	expanded := spanPattern.ReplaceAllStringFunc(text, func(span string) string {
		if firstErr != nil {
			return span
		}

		value, err := evaluate(span[2:len(span)-2], ctx)
		if err != nil {
			firstErr = err

			return span
		}

		return formatValue(value)
	})
	if firstErr != nil {
		return "", firstErr
	}

	return expanded, nil
}

// namespace builds the names visible from a scope. Narrower scopes shadow
// wider ones.
func (r *Resolver) namespace(kind models.ScopeKind, chain ScopeChain) (map[string]cty.Value, error) {
	variables := constants()
	if kind == models.ScopeGlobal {
		return variables, nil
	}

	if err := r.bind(variables, chain.Global, ScopeChain{}); err != nil {
		return nil, err
	}

	if kind == models.ScopeJob {
		if err := r.bind(variables, chain.Pipeline, ScopeChain{Global: chain.Global}); err != nil {
			return nil, err
		}
	}

	return variables, nil
}

func (r *Resolver) bind(variables map[string]cty.Value, params []*models.Param, chain ScopeChain) error {
	for _, param := range params {
		value, err := r.Resolve(param, chain)
		if err != nil {
			return err
		}

		converted, err := toCty(value)
		if err != nil {
			return err
		}

		variables[param.Name] = converted
	}

	return nil
}

func constants() map[string]cty.Value {
	return map[string]cty.Value{
		"True":  cty.True,
		"False": cty.False,
	}
}
