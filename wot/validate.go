package wot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaError describes the first location where a value does not conform to a DataSchema
type SchemaError struct {
	// JSON pointer to the offending value ("" for the root)
	Path   string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Normalize converts a Go value into its generic JSON representation
// (map[string]any, []any, float64, string, bool or nil).
// The result never shares memory with the input.
func Normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("value is not JSON-representable: %s", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// CompiledSchema is a DataSchema compiled into a JSON Schema (draft-07) validator.
// A nil CompiledSchema accepts any value.
type CompiledSchema struct {
	schema *gojsonschema.Schema
}

// Compile translates the schema for validation. A nil schema compiles to nil.
func (s *DataSchema) Compile() (*CompiledSchema, error) {
	if s == nil {
		return nil, nil
	}
	loader := gojsonschema.NewSchemaLoader()
	loader.AutoDetect = false
	loader.Draft = gojsonschema.Draft7
	schema, err := loader.Compile(gojsonschema.NewGoLoader(s))
	if err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("invalid schema: %s", err)}
	}
	return &CompiledSchema{schema: schema}, nil
}

// Validate checks the value against the compiled schema
func (c *CompiledSchema) Validate(value any) error {
	if c == nil {
		return nil
	}
	v, err := Normalize(value)
	if err != nil {
		return &SchemaError{Reason: err.Error()}
	}
	result, err := c.schema.Validate(gojsonschema.NewGoLoader(v))
	if err != nil {
		return &SchemaError{Reason: err.Error()}
	}
	if result.Valid() {
		return nil
	}
	first := result.Errors()[0]
	return &SchemaError{Path: pointer(first.Context()), Reason: first.Description()}
}

// Validate compiles the schema and checks the value against it. A nil schema accepts any value.
func (s *DataSchema) Validate(value any) error {
	c, err := s.Compile()
	if err != nil {
		return err
	}
	return c.Validate(value)
}

// pointer turns a validation context like (root)/a/0 into a JSON pointer
func pointer(context *gojsonschema.JsonContext) string {
	if context == nil {
		return ""
	}
	return strings.TrimPrefix(context.String("/"), gojsonschema.STRING_CONTEXT_ROOT)
}
