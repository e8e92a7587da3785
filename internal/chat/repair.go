package chat

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/loreweaver/loreweaver/internal/log"
)

// repairToolCalls normalizes an assistant message whose tool intent arrived
// in nonstandard form. Some providers put the call in response metadata
// under "function_call" or "tool_call" instead of the structured field, and
// some encode the arguments as a JSON string. After repair, ToolCalls is the
// single source of truth. Calls synthesized from metadata get a generated ID
// when the provider supplied none; structured calls keep theirs as-is, so a
// structured call without an ID is still skipped at dispatch.
func repairToolCalls(ctx context.Context, logger log.Logger, msg *Message) {
	if msg == nil {
		return
	}

	if len(msg.ToolCalls) == 0 && msg.Metadata != nil {
		for _, key := range []string{"function_call", "tool_call"} {
			raw, okRaw := msg.Metadata[key]
			if !okRaw {
				continue
			}
			call, okCall := callFromMetadata(raw)
			if !okCall {
				logger.WarnContext(ctx, "unparseable tool call in response metadata", "key", key)
				continue
			}
			if call.ID == "" {
				call.ID = uuid.NewString()
			}
			msg.ToolCalls = append(msg.ToolCalls, call)
		}
	}

	for i := range msg.ToolCalls {
		msg.ToolCalls[i].Arguments = decodeArguments(msg.ToolCalls[i].Arguments)
	}
}

// callFromMetadata extracts one tool call from a metadata value shaped like
// {"name": ..., "arguments"|"args": ..., "id": ...}.
func callFromMetadata(raw any) (ToolCall, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return ToolCall{}, false
	}
	name, ok := m["name"].(string)
	if !ok || name == "" {
		return ToolCall{}, false
	}

	call := ToolCall{Name: name}
	if id, ok := m["id"].(string); ok {
		call.ID = id
	}

	args := m["arguments"]
	if args == nil {
		args = m["args"]
	}
	switch v := args.(type) {
	case map[string]any:
		call.Arguments = v
	case string:
		call.Arguments = map[string]any{"__raw": v}
	}
	return call, true
}

// decodeArguments unwraps string-encoded argument payloads into the map the
// dispatcher expects. Undecodable strings are left under "__raw" for the
// tool's own validation to reject.
func decodeArguments(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	raw, ok := args["__raw"].(string)
	if !ok || len(args) != 1 {
		return args
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return args
	}
	return decoded
}
