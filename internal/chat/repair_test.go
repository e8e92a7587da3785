package chat

import (
	"context"
	"testing"

	"github.com/loreweaver/loreweaver/internal/log"
)

func TestRepairFunctionCallMetadata(t *testing.T) {
	msg := &Message{
		Role: RoleAssistant,
		Metadata: map[string]any{
			"function_call": map[string]any{
				"name":      "lore_lookup",
				"arguments": `{"query": "Ashen Court"}`,
			},
		},
	}

	repairToolCalls(context.Background(), log.NewNop(), msg)

	if len(msg.ToolCalls) != 1 {
		t.Fatalf("len(ToolCalls) = %d, want 1", len(msg.ToolCalls))
	}
	call := msg.ToolCalls[0]
	if call.Name != "lore_lookup" {
		t.Errorf("Name = %q", call.Name)
	}
	if got := call.Arguments["query"]; got != "Ashen Court" {
		t.Errorf("Arguments[query] = %v", got)
	}
	if call.ID == "" {
		t.Error("repaired call has no ID")
	}
}

func TestRepairStructuredCallsUntouched(t *testing.T) {
	msg := &Message{
		Role: RoleAssistant,
		ToolCalls: []ToolCall{
			{Name: "current_time", ID: "c1", Arguments: map[string]any{"timezone": "UTC"}},
		},
		Metadata: map[string]any{
			"function_call": map[string]any{"name": "should_be_ignored"},
		},
	}

	repairToolCalls(context.Background(), log.NewNop(), msg)

	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Name != "current_time" {
		t.Errorf("ToolCalls = %+v", msg.ToolCalls)
	}
	if msg.ToolCalls[0].ID != "c1" {
		t.Errorf("existing ID was replaced: %q", msg.ToolCalls[0].ID)
	}
}

func TestRepairKeepsStructuredCallWithoutID(t *testing.T) {
	msg := &Message{
		Role: RoleAssistant,
		ToolCalls: []ToolCall{
			{Name: "lore_lookup", Arguments: map[string]any{"query": "Veldt"}},
		},
	}

	repairToolCalls(context.Background(), log.NewNop(), msg)

	// Only metadata-synthesized calls get generated ids; a structured
	// call without one stays without one so dispatch can skip it.
	if msg.ToolCalls[0].ID != "" {
		t.Errorf("structured call was assigned ID %q", msg.ToolCalls[0].ID)
	}
}

func TestRepairUndecodableArguments(t *testing.T) {
	msg := &Message{
		Role: RoleAssistant,
		Metadata: map[string]any{
			"tool_call": map[string]any{
				"name":      "lore_lookup",
				"arguments": "not json at all",
			},
		},
	}

	repairToolCalls(context.Background(), log.NewNop(), msg)

	if len(msg.ToolCalls) != 1 {
		t.Fatalf("len(ToolCalls) = %d, want 1", len(msg.ToolCalls))
	}
	// Left raw for the tool's own validation to reject.
	if got := msg.ToolCalls[0].Arguments["__raw"]; got != "not json at all" {
		t.Errorf("Arguments = %+v", msg.ToolCalls[0].Arguments)
	}
}

func TestRepairNilArguments(t *testing.T) {
	msg := &Message{
		Role:      RoleAssistant,
		ToolCalls: []ToolCall{{Name: "current_time", ID: "c1"}},
	}

	repairToolCalls(context.Background(), log.NewNop(), msg)

	if msg.ToolCalls[0].Arguments == nil {
		t.Error("nil arguments not normalized to empty map")
	}
}
