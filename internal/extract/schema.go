package extract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

// Schema validates extracted objects against a JSON Schema document.
type Schema struct {
	schema *jsonschema.Schema
}

// CompileSchema compiles a JSON Schema document.
func CompileSchema(raw []byte) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	s, err := compiler.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("extract: compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// MustCompileSchema is CompileSchema for package-level schema literals.
func MustCompileSchema(raw string) *Schema {
	s, err := CompileSchema([]byte(raw))
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks obj against the schema.
func (s *Schema) Validate(obj json.RawMessage) error {
	result := s.schema.ValidateJSON(obj)
	if result.IsValid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors))
	for field, e := range result.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %v", field, e))
	}
	sort.Strings(msgs)
	return fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
}

// DecodeValid extracts the JSON object from text, validates it against
// schema, and unmarshals it into v. Validation failures are ParseErrors.
func DecodeValid(text string, schema *Schema, v any) error {
	obj, err := Object(text)
	if err != nil {
		return err
	}
	if schema != nil {
		if err := schema.Validate(obj); err != nil {
			return &ParseError{Err: err}
		}
	}
	if err := json.Unmarshal(obj, v); err != nil {
		return &ParseError{Err: err}
	}
	return nil
}
