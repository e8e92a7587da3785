// Package tool defines the capabilities the model can invoke during a turn:
// a typed tool constructor, the registry that dispatches calls, and the
// built-in tools.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/loreweaver/loreweaver/internal/chat"
)

// Tool is one capability: metadata for the model plus the execution logic.
type Tool interface {
	Name() string
	Description() string

	// Spec returns the provider-facing declaration with a sanitized schema.
	Spec() chat.ToolSpec

	// Call executes the tool with decoded arguments.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// typedTool pairs a handler over a concrete input type with the schema
// derived from that type. Type erasure happens at the Call boundary.
type typedTool[In any] struct {
	name        string
	description string
	schema      map[string]any
	handler     func(context.Context, In) (string, error)
}

// New creates a tool whose input schema is derived from In's struct tags.
//
// Example:
//
//	type lookupInput struct {
//		Query string `json:"query" jsonschema:"the entry to search for"`
//	}
//	t, err := tool.New("lore_lookup", "Search the world archive.", doLookup)
func New[In any](name, description string, handler func(context.Context, In) (string, error)) (Tool, error) {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", name, err)
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", name, err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(raw, &schemaMap); err != nil {
		return nil, fmt.Errorf("decode schema for %s: %w", name, err)
	}

	return &typedTool[In]{
		name:        name,
		description: description,
		schema:      Sanitize(schemaMap),
		handler:     handler,
	}, nil
}

func (t *typedTool[In]) Name() string        { return t.name }
func (t *typedTool[In]) Description() string { return t.description }

func (t *typedTool[In]) Spec() chat.ToolSpec {
	return chat.ToolSpec{
		Name:        t.name,
		Description: t.description,
		Schema:      t.schema,
	}
}

// Call decodes the argument map into In via JSON round-trip, then runs the
// handler. Providers deliver arguments as map[string]any.
func (t *typedTool[In]) Call(ctx context.Context, args map[string]any) (string, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal arguments: %w", err)
	}
	var input In
	if err := json.Unmarshal(raw, &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	return t.handler(ctx, input)
}
