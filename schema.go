package venice

import (
	"encoding/json"
	"fmt"
	"reflect"

	gschema "github.com/google/jsonschema-go/jsonschema"
	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects the JSON schema of T. Objects are inlined and closed
// to additional properties; fields without omitempty are required.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Anonymous:                 true,
	}
	return reflector.ReflectFromType(reflect.TypeFor[T]())
}

// SchemaMap converts a reflected schema into the plain object sent to the
// provider as function parameters. Meta keys are dropped.
func SchemaMap(schema *jsonschema.Schema) (map[string]any, error) {
	if schema == nil {
		return nil, nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("venice: marshal schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("venice: unmarshal schema: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

// compileSchema resolves the reflected schema into an argument validator.
func compileSchema(schema *jsonschema.Schema) (*gschema.Resolved, error) {
	raw, err := SchemaMap(schema)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var s gschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.Resolve(nil)
}
