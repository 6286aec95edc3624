package params

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// evaluate parses and evaluates a single inline expression.
func evaluate(source string, ctx *hcl.EvalContext) (cty.Value, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(source), "inline", hcl.InitialPos)
	if diags.HasErrors() {
		return cty.NilVal, &EvaluationError{Expression: source, Err: diags}
	}

	value, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return cty.NilVal, &EvaluationError{Expression: source, Err: diags}
	}

	if !value.IsWhollyKnown() {
		return cty.NilVal, &EvaluationError{Expression: source, Err: ErrUnsupportedValue}
	}

	return value, nil
}

// formatValue renders an expression result the way it is spliced into text.
func formatValue(value cty.Value) string {
	return formatCty(value, false)
}

func formatCty(value cty.Value, nested bool) string {
	if value.IsNull() {
		return "None"
	}

	valueType := value.Type()

	switch {
	case valueType == cty.String:
		if nested {
			return "'" + value.AsString() + "'"
		}

		return value.AsString()
	case valueType == cty.Number:
		return formatNumber(value.AsBigFloat())
	case valueType == cty.Bool:
		if value.True() {
			return "True"
		}

		return "False"
	case value.CanIterateElements():
		parts := make([]string, 0, value.LengthInt())

		for it := value.ElementIterator(); it.Next(); {
			key, element := it.Element()
			if valueType.IsMapType() || valueType.IsObjectType() {
				parts = append(parts, formatCty(key, true)+": "+formatCty(element, true))
			} else {
				parts = append(parts, formatCty(element, true))
			}
		}

		if valueType.IsMapType() || valueType.IsObjectType() {
			return "{" + strings.Join(parts, ", ") + "}"
		}

		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return value.GoString()
	}
}

func formatNumber(number *big.Float) string {
	if number.IsInt() {
		if i, accuracy := number.Int64(); accuracy == big.Exact {
			return strconv.FormatInt(i, 10)
		}
	}

	f, _ := number.Float64()

	return strconv.FormatFloat(f, 'g', -1, 64)
}

// toCty converts a resolved Value into the expression language.
func toCty(value Value) (cty.Value, error) {
	switch v := value.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case string:
		return cty.StringVal(v), nil
	case bool:
		return cty.BoolVal(v), nil
	case int:
		return cty.NumberIntVal(int64(v)), nil
	case int64:
		return cty.NumberIntVal(v), nil
	case float64:
		if err := checkFinite(v); err != nil {
			return cty.NilVal, err
		}

		return cty.NumberFloatVal(v), nil
	case []string:
		if len(v) == 0 {
			return cty.ListValEmpty(cty.String), nil
		}

		elements := make([]cty.Value, len(v))
		for i, s := range v {
			elements[i] = cty.StringVal(s)
		}

		return cty.ListVal(elements), nil
	case []Value:
		elements := make([]cty.Value, len(v))

		for i, element := range v {
			converted, err := toCty(element)
			if err != nil {
				return cty.NilVal, err
			}

			elements[i] = converted
		}

		return cty.TupleVal(elements), nil
	default:
		return cty.NilVal, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}
}
