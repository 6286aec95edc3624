package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dukex/jobline/pkg/models"
)

// Value is a resolved param value. Its dynamic type is one of string, bool,
// int64, float64, []string (string_list) or []Value of numbers (number_list).
type Value = any

// ParseNumber parses text as an integer, else a float, else returns 0.
// Non-numeric text never errors.
func ParseNumber(text string) Value {
	trimmed := strings.TrimSpace(text)

	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}

	return int64(0)
}

// Coerce converts expanded text to the Go value of the param type.
// Booleans are not handled here: they are decided on the raw stored value.
func Coerce(paramType models.ParamType, text string) Value {
	switch paramType {
	case models.ParamTypeNumber:
		return ParseNumber(text)
	case models.ParamTypeStringList:
		return strings.Split(text, "\n")
	case models.ParamTypeNumberList:
		numbers := make([]Value, 0)

		for _, line := range strings.Split(text, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}

			numbers = append(numbers, ParseNumber(line))
		}

		return numbers
	default:
		return text
	}
}

// checkFinite rejects NaN and infinite numbers, which neither the expression
// language nor JSON can carry.
func checkFinite(value Value) error {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite number %v", ErrUnsupportedValue, v)
		}
	case []Value:
		for _, element := range v {
			if err := checkFinite(element); err != nil {
				return err
			}
		}
	}

	return nil
}
