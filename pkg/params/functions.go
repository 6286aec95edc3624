package params

import (
	"math"
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

const defaultDateFormat = "%Y%m%d"

// functions returns the whitelist of callables available to inline expressions.
func functions(now func() time.Time) map[string]function.Function {
	return map[string]function.Function{
		"upper":     stdlib.UpperFunc,
		"lower":     stdlib.LowerFunc,
		"trimspace": stdlib.TrimSpaceFunc,
		"format":    stdlib.FormatFunc,
		"join":      stdlib.JoinFunc,
		"split":     stdlib.SplitFunc,
		"replace":   stdlib.ReplaceFunc,
		"substr":    stdlib.SubstrFunc,
		"strlen":    stdlib.StrlenFunc,
		"length":    stdlib.LengthFunc,
		"abs":       stdlib.AbsoluteFunc,
		"ceil":      stdlib.CeilFunc,
		"floor":     stdlib.FloorFunc,
		"max":       stdlib.MaxFunc,
		"min":       stdlib.MinFunc,
		"int":       stdlib.IntFunc,
		"concat":    stdlib.ConcatFunc,
		"coalesce":  stdlib.CoalesceFunc,

		"today":      todayFunc(now),
		"days_ago":   offsetFunc(now, 24*time.Hour),
		"hours_ago":  offsetFunc(now, time.Hour),
		"days_since": daysSinceFunc(now),
	}
}

// todayFunc: today([format]) formats the current date.
func todayFunc(now func() time.Time) function.Function {
	return function.New(&function.Spec{
		VarParam: &function.Parameter{Name: "format", Type: cty.String},
		Type:     function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return formatDateValue(now(), args)
		},
	})
}

// offsetFunc: days_ago(n, [format]) and hours_ago(n, [format]).
func offsetFunc(now func() time.Time, unit time.Duration) function.Function {
	return function.New(&function.Spec{
		Params:   []function.Parameter{{Name: "n", Type: cty.Number}},
		VarParam: &function.Parameter{Name: "format", Type: cty.String},
		Type:     function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			var n float64
			if err := gocty.FromCtyValue(args[0], &n); err != nil {
				return cty.NilVal, function.NewArgError(0, err)
			}

			offset := time.Duration(n * float64(unit))

			return formatDateValue(now().Add(-offset), args[1:])
		},
	})
}

// daysSinceFunc: days_since(date, [format]) counts whole days between date and now.
func daysSinceFunc(now func() time.Time) function.Function {
	return function.New(&function.Spec{
		Params:   []function.Parameter{{Name: "date", Type: cty.String}},
		VarParam: &function.Parameter{Name: "format", Type: cty.String},
		Type:     function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			pattern := defaultDateFormat
			if len(args) > 1 {
				pattern = args[1].AsString()
			}

			date, err := parseDate(args[0].AsString(), pattern)
			if err != nil {
				return cty.NilVal, function.NewArgError(0, err)
			}

			days := math.Floor(now().Sub(date).Hours() / 24)

			return cty.NumberIntVal(int64(days)), nil
		},
	})
}

func formatDateValue(t time.Time, formatArgs []cty.Value) (cty.Value, error) {
	pattern := defaultDateFormat
	if len(formatArgs) > 0 {
		pattern = formatArgs[0].AsString()
	}

	return cty.StringVal(formatDate(t, pattern)), nil
}
