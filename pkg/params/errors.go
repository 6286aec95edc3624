package params

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedValue is returned when a value cannot cross between Go and the expression language.
var ErrUnsupportedValue = errors.New("unsupported value")

// EvaluationError reports an inline expression that failed to parse or evaluate,
// including references to undefined names and calls to functions outside the whitelist.
type EvaluationError struct {
	Expression string
	Err        error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("cannot evaluate %q: %v", strings.TrimSpace(e.Expression), e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// IsEvaluationError checks if err is, or wraps, an EvaluationError.
func IsEvaluationError(err error) bool {
	var evalErr *EvaluationError

	return errors.As(err, &evalErr)
}
