package threat

import (
	"fmt"
	"strings"

	"iochunt/core"

	"github.com/xeipuuv/gojsonschema"
)

// Each source owns the shape of its hit context. The schemas only pin the keys
// the UI and reviewers rely on; extra keys are allowed.
const inventoryContextSchema = `{
	"type": "object",
	"required": ["file_path", "file_name"],
	"properties": {
		"file_path":  {"type": "string"},
		"file_name":  {"type": "string"},
		"md5":        {"type": "string", "pattern": "^[a-f0-9]{32}$"},
		"sha1":       {"type": "string", "pattern": "^[a-f0-9]{40}$"},
		"sha256":     {"type": "string", "pattern": "^[a-f0-9]{64}$"},
		"first_seen": {"type": "string"}
	}
}`

const logContextSchema = `{
	"type": "object",
	"required": ["message", "event_time"],
	"properties": {
		"message":    {"type": "string", "minLength": 1},
		"event_time": {"type": "string"},
		"log_source": {"type": "string"}
	}
}`

// ContextValidator checks hit contexts against the per-source schema
type ContextValidator struct {
	schemas map[core.MatchSourceKind]*gojsonschema.Schema
}

// NewContextValidator compiles the built-in source schemas
func NewContextValidator() (*ContextValidator, error) {
	v := &ContextValidator{schemas: make(map[core.MatchSourceKind]*gojsonschema.Schema, 2)}
	for kind, raw := range map[core.MatchSourceKind]string{
		core.MatchSourceInventory: inventoryContextSchema,
		core.MatchSourceLog:       logContextSchema,
	} {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s context schema: %w", kind, err)
		}
		v.schemas[kind] = schema
	}
	return v, nil
}

// Validate returns a ValidationError naming the first violations in ctx
func (v *ContextValidator) Validate(source core.MatchSourceKind, ctx map[string]interface{}) error {
	schema, ok := v.schemas[source]
	if !ok {
		return nil
	}
	if ctx == nil {
		ctx = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(ctx))
	if err != nil {
		return fmt.Errorf("failed to validate %s context: %w", source, err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return core.NewValidationError("context", fmt.Sprintf("%s hit: %s", source, strings.Join(problems, "; ")))
}
