package tool

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaFor derives a JSON Schema parameter map from a Go struct, using json
// tags for property names and jsonschema tags for descriptions. Convenience
// for registering tools whose argument shape already exists as a type.
func SchemaFor(v any) (map[string]any, error) {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(v)

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("reflect schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("reflect schema: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

// MustSchemaFor is SchemaFor for static argument types known to reflect
// cleanly; it panics on failure.
func MustSchemaFor(v any) map[string]any {
	s, err := SchemaFor(v)
	if err != nil {
		panic(err)
	}
	return s
}
