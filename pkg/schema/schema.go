// Package schema validates pipeline definitions before they are imported.
package schema

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed definition.schema.json
var definitionSchema string

var compiled = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(definitionSchema))
})

// ValidationError lists every violation found in a document.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation errors: " + strings.Join(e.Violations, "; ")
}

// ValidateDefinition checks a JSON pipeline definition. It returns a
// *ValidationError when the document does not match the schema.
func ValidateDefinition(document []byte) error {
	return validate(gojsonschema.NewBytesLoader(document))
}

// ValidateDefinitionValue checks an already decoded definition.
func ValidateDefinitionValue(document any) error {
	return validate(gojsonschema.NewGoLoader(document))
}

func validate(loader gojsonschema.JSONLoader) error {
	definition, err := compiled()
	if err != nil {
		return fmt.Errorf("invalid definition schema: %w", err)
	}

	result, err := definition.Validate(loader)
	if err != nil {
		return &ValidationError{Violations: []string{err.Error()}}
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}

	return &ValidationError{Violations: violations}
}
