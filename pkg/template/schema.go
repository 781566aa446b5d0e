package template

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// shapeSchemaJSON is a coarse JSON Schema gate applied before the field-level
// checks in ValidateWithErrors: it rejects documents whose top-level keys
// are the wrong JSON type outright (e.g. screen_id as a number, or
// required_nodes as an object) so that a malformed template fails with a
// precise diagnostic instead of a silent zero-value in the decoded struct.
const shapeSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "screen_id": {"type": "string"},
    "required_nodes": {"type": "array", "items": {"type": "string"}},
    "structure_signature": {"type": "string"},
    "valid_transitions": {"type": "array", "items": {"type": "string"}},
    "metadata": {
      "type": "object",
      "properties": {
        "app": {"type": "string"},
        "version": {"type": "string"},
        "source": {"type": "string"}
      }
    }
  }
}`

var compiledShapeSchema = mustCompileShapeSchema()

func mustCompileShapeSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const schemaURL = "https://driftwatch.local/template.schema.json"
	if err := c.AddResource(schemaURL, strings.NewReader(shapeSchemaJSON)); err != nil {
		panic(fmt.Sprintf("template: invalid embedded shape schema: %v", err))
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("template: shape schema compile failed: %v", err))
	}
	return compiled
}

// ValidateShape decodes raw YAML into a generic document and checks it
// against the coarse shape schema, independent of struct-tag decoding.
func ValidateShape(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("template: parse: %w", err)
	}
	generic, err := toJSONGeneric(doc)
	if err != nil {
		return fmt.Errorf("template: normalize for schema check: %w", err)
	}
	if err := compiledShapeSchema.Validate(generic); err != nil {
		return fmt.Errorf("template: shape validation: %w", err)
	}
	return nil
}

// toJSONGeneric converts yaml.v3's decode output (map[string]interface{}
// with possible nested map[string]interface{}) into the map[string]interface{}
// shape jsonschema expects; yaml.v3 already decodes maps with string keys
// when the source uses string keys, so this is mostly a pass-through that
// also handles []interface{} recursion.
func toJSONGeneric(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			conv, err := toJSONGeneric(vv)
			if err != nil {
				return nil, err
			}
			out[k] = conv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			conv, err := toJSONGeneric(vv)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	default:
		return v, nil
	}
}
