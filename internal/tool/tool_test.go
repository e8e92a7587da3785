package tool

import (
	"context"
	"fmt"
	"testing"
)

type lookupInput struct {
	Query string `json:"query"`
	TopK  int    `json:"topK,omitempty"`
}

func TestTypedToolDecodesArguments(t *testing.T) {
	tl, err := New("lookup", "test", func(ctx context.Context, in lookupInput) (string, error) {
		return fmt.Sprintf("%s/%d", in.Query, in.TopK), nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := tl.Call(context.Background(), map[string]any{"query": "Veldt", "topK": 5})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "Veldt/5" {
		t.Errorf("got %q", got)
	}
}

func TestTypedToolRejectsBadArguments(t *testing.T) {
	tl, err := New("lookup", "test", func(ctx context.Context, in lookupInput) (string, error) {
		return "", nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := tl.Call(context.Background(), map[string]any{"topK": "not a number"}); err == nil {
		t.Error("mistyped argument did not error")
	}
}

func TestToolSpecSchema(t *testing.T) {
	tl, err := New("lookup", "Search things.", func(ctx context.Context, in lookupInput) (string, error) {
		return "", nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	spec := tl.Spec()
	if spec.Name != "lookup" || spec.Description != "Search things." {
		t.Errorf("spec = %+v", spec)
	}
	props, ok := spec.Schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %+v", spec.Schema)
	}
	if _, ok := props["query"]; !ok {
		t.Errorf("schema missing query property: %+v", props)
	}
}

func TestSanitize(t *testing.T) {
	schema := map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"nested": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"leaf": map[string]any{"type": "string"},
				},
			},
			"list": map[string]any{
				"type":  "array",
				"items": []any{map[string]any{"schema": "bad", "type": "string"}},
			},
		},
	}

	got := Sanitize(schema)

	if _, ok := got["$schema"]; ok {
		t.Error("$schema survived sanitization")
	}
	if _, ok := got["additionalProperties"]; ok {
		t.Error("top-level additionalProperties survived")
	}
	nested := got["properties"].(map[string]any)["nested"].(map[string]any)
	if _, ok := nested["additionalProperties"]; ok {
		t.Error("nested additionalProperties survived")
	}
	item := got["properties"].(map[string]any)["list"].(map[string]any)["items"].([]any)[0].(map[string]any)
	if _, ok := item["schema"]; ok {
		t.Error("schema key inside array survived")
	}
	if item["type"] != "string" {
		t.Error("legitimate keys were stripped")
	}

	// Original untouched.
	if _, ok := schema["$schema"]; !ok {
		t.Error("Sanitize mutated its input")
	}
}
