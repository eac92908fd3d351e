package registry

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// manifestSchema accepts the permission block shape. Enum values are left
// open on purpose: unrecognized scope/delegation/external strings fall back
// to safe defaults at parse time, so only structural violations reject a
// manifest.
const manifestSchema = `{
	"type": "object",
	"properties": {
		"scope": {"type": "string"},
		"delegation": {"type": "string"},
		"external": {"type": "string"},
		"tools": {
			"type": "object",
			"properties": {
				"allow": {"type": "array", "items": {"type": "string"}},
				"deny": {"type": "array", "items": {"type": "string"}}
			}
		}
	}
}`

// ManifestValidator checks raw permission blocks against the manifest schema
// before they are stored. Compile once, validate per registration.
type ManifestValidator struct {
	schema *jsonschema.Schema
}

// NewManifestValidator compiles the manifest schema.
func NewManifestValidator() (*ManifestValidator, error) {
	var schemaObj any
	if err := json.Unmarshal([]byte(manifestSchema), &schemaObj); err != nil {
		return nil, fmt.Errorf("NewManifestValidator: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("manifest.json", schemaObj); err != nil {
		return nil, fmt.Errorf("NewManifestValidator: %w", err)
	}
	sch, err := c.Compile("manifest.json")
	if err != nil {
		return nil, fmt.Errorf("NewManifestValidator: %w", err)
	}
	return &ManifestValidator{schema: sch}, nil
}

// Validate checks one raw permission block. An empty block is valid (it means
// the documented defaults). The returned error is safe to echo to API
// clients.
func (v *ManifestValidator) Validate(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("permissions block is not valid JSON: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("permissions block rejected: %w", err)
	}
	return nil
}
