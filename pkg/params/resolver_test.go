package params

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/jobline/pkg/models"
)

func globalParam(name string, paramType models.ParamType, value string) *models.Param {
	return &models.Param{Name: name, Type: paramType, Value: value, Scope: models.GlobalScope()}
}

func pipelineParam(name string, paramType models.ParamType, value string) *models.Param {
	return &models.Param{Name: name, Type: paramType, Value: value, Scope: models.PipelineScope("p1")}
}

func jobParam(name string, paramType models.ParamType, value string) *models.Param {
	return &models.Param{Name: name, Type: paramType, Value: value, Scope: models.JobScope("j1")}
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
}

func TestResolve_Coercion(t *testing.T) {
	resolver := NewResolver()

	tests := []struct {
		name     string
		param    *models.Param
		expected Value
	}{
		{"non numeric number", globalParam("n", models.ParamTypeNumber, "abc"), int64(0)},
		{"float number", globalParam("n", models.ParamTypeNumber, "3.5"), 3.5},
		{"padded integer", globalParam("n", models.ParamTypeNumber, " 42 "), int64(42)},
		{"expression number", globalParam("n", models.ParamTypeNumber, "{% 10 / 4 %}"), 2.5},
		{"expression string", globalParam("s", models.ParamTypeString, "{% 2+2 %}"), "4"},
		{"fraction string", globalParam("s", models.ParamTypeString, "{% 7 / 2 %}"), "3.5"},
		{"constant", globalParam("s", models.ParamTypeString, "{% True %}"), "True"},
		{"boolean true", globalParam("b", models.ParamTypeBoolean, "1"), true},
		{"boolean is never expanded", globalParam("b", models.ParamTypeBoolean, "{% True %}"), false},
		{"string list keeps blank lines", globalParam("l", models.ParamTypeStringList, "a\n\nb"), []string{"a", "", "b"}},
		{
			"number list drops blank lines",
			globalParam("l", models.ParamTypeNumberList, "1\n\n2.5\nx\n"),
			[]Value{int64(1), 2.5, int64(0)},
		},
		{"plain text", globalParam("s", models.ParamTypeString, "no expressions"), "no expressions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := resolver.Resolve(tt.param, ScopeChain{})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestResolve_ScopeShadowing(t *testing.T) {
	resolver := NewResolver()
	param := jobParam("target", models.ParamTypeString, "{% x %}")

	value, err := resolver.Resolve(param, ScopeChain{
		Global:   []*models.Param{globalParam("x", models.ParamTypeString, "g")},
		Pipeline: []*models.Param{pipelineParam("x", models.ParamTypeString, "p")},
	})
	require.NoError(t, err)
	assert.Equal(t, "p", value)

	value, err = resolver.Resolve(param, ScopeChain{
		Global: []*models.Param{globalParam("x", models.ParamTypeString, "g")},
	})
	require.NoError(t, err)
	assert.Equal(t, "g", value)

	_, err = resolver.Resolve(param, ScopeChain{})
	require.Error(t, err)
	assert.True(t, IsEvaluationError(err))
}

func TestResolve_GlobalSeesOnlyConstants(t *testing.T) {
	resolver := NewResolver()
	param := globalParam("derived", models.ParamTypeString, "{% env %}")

	_, err := resolver.Resolve(param, ScopeChain{
		Global: []*models.Param{globalParam("env", models.ParamTypeString, "prod")},
	})
	assert.True(t, IsEvaluationError(err))
}

func TestResolve_PipelineParamSeesGlobals(t *testing.T) {
	resolver := NewResolver()
	chain := ScopeChain{
		Global: []*models.Param{
			globalParam("env", models.ParamTypeString, "prod"),
			globalParam("n", models.ParamTypeNumber, "3"),
		},
	}

	value, err := resolver.Resolve(pipelineParam("file", models.ParamTypeString, "report_{% upper(env) %}_{% n * 2 %}.csv"), chain)
	require.NoError(t, err)
	assert.Equal(t, "report_PROD_6.csv", value)
}

func TestResolve_JobParamSeesResolvedPipelineParams(t *testing.T) {
	resolver := NewResolver()
	chain := ScopeChain{
		Global:   []*models.Param{globalParam("project", models.ParamTypeString, "acme")},
		Pipeline: []*models.Param{pipelineParam("dataset", models.ParamTypeString, "{% project %}_raw")},
	}

	value, err := resolver.Resolve(jobParam("table", models.ParamTypeString, "{% dataset %}.events"), chain)
	require.NoError(t, err)
	assert.Equal(t, "acme_raw.events", value)
}

func TestResolve_Lists(t *testing.T) {
	resolver := NewResolver()
	chain := ScopeChain{
		Global: []*models.Param{
			globalParam("tables", models.ParamTypeStringList, "a\nb"),
			globalParam("ids", models.ParamTypeNumberList, "1\n2.5"),
		},
	}

	value, err := resolver.Resolve(pipelineParam("s", models.ParamTypeString, "{% tables %}"), chain)
	require.NoError(t, err)
	assert.Equal(t, "['a', 'b']", value)

	value, err = resolver.Resolve(pipelineParam("s", models.ParamTypeString, `{% join(",", tables) %}`), chain)
	require.NoError(t, err)
	assert.Equal(t, "a,b", value)

	value, err = resolver.Resolve(pipelineParam("s", models.ParamTypeString, "{% ids %}"), chain)
	require.NoError(t, err)
	assert.Equal(t, "[1, 2.5]", value)
}

func TestResolve_Errors(t *testing.T) {
	resolver := NewResolver()

	tests := []struct {
		name  string
		value string
	}{
		{"syntax error", "{% 2 + %}"},
		{"function outside whitelist", `{% exec("rm") %}`},
		{"undefined name", "{% missing %}"},
		{"blank expression", "{% %}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.Resolve(globalParam("s", models.ParamTypeString, tt.value), ScopeChain{})
			require.Error(t, err)
			assert.True(t, IsEvaluationError(err))
		})
	}
}

func TestResolve_BrokenGlobalFailsNarrowerScopes(t *testing.T) {
	resolver := NewResolver()
	chain := ScopeChain{
		Global: []*models.Param{globalParam("bad", models.ParamTypeString, "{% nope %}")},
	}

	_, err := resolver.Resolve(pipelineParam("s", models.ParamTypeString, "plain"), chain)
	assert.True(t, IsEvaluationError(err))
}

func TestResolve_NonFiniteNumbers(t *testing.T) {
	resolver := NewResolver()

	for _, tt := range []struct {
		name  string
		param *models.Param
	}{
		{"nan", globalParam("x", models.ParamTypeNumber, "NaN")},
		{"inf", globalParam("x", models.ParamTypeNumber, "inf")},
		{"negative infinity", globalParam("x", models.ParamTypeNumber, "-Infinity")},
		{"nan in list", globalParam("x", models.ParamTypeNumberList, "1\nnan")},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.Resolve(tt.param, ScopeChain{})
			require.Error(t, err)
			assert.True(t, IsEvaluationError(err))
			assert.ErrorIs(t, err, ErrUnsupportedValue)

			chain := ScopeChain{Global: []*models.Param{tt.param}}

			assert.NotPanics(t, func() {
				_, err = resolver.Resolve(pipelineParam("s", models.ParamTypeString, "{% 1 %}"), chain)
			})
			assert.True(t, IsEvaluationError(err))

			assert.NotPanics(t, func() {
				_, err = resolver.Resolve(jobParam("s", models.ParamTypeString, "plain"), chain)
			})
			assert.True(t, IsEvaluationError(err))
		})
	}

	_, err := toCty(math.NaN())
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestResolveAll(t *testing.T) {
	resolver := NewResolver()

	values, err := resolver.ResolveAll([]*models.Param{
		jobParam("a", models.ParamTypeNumber, "{% 1 + 1 %}"),
		jobParam("b", models.ParamTypeBoolean, "0"),
	}, ScopeChain{})
	require.NoError(t, err)

	assert.Equal(t, map[string]Value{"a": int64(2), "b": false}, values)
}

func TestResolve_DateHelpers(t *testing.T) {
	resolver := NewResolver(WithClock(fixedClock))

	tests := []struct {
		value    string
		expected string
	}{
		{"{% today() %}", "20240310"},
		{`{% today("%Y-%m-%d") %}`, "2024-03-10"},
		{"{% days_ago(1) %}", "20240309"},
		{`{% hours_ago(2, "%Y%m%d%H") %}`, "2024031010"},
		{`{% days_since("20240301") %}`, "9"},
		{`{% days_since("2024-03-01 run1", "%Y-%m-%d run1") %}`, "9"},
		{"{% max(1, 2) %}", "2"},
		{`{% trimspace("  a ") %}`, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			value, err := resolver.Resolve(globalParam("d", models.ParamTypeString, tt.value), ScopeChain{})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}
