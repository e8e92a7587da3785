package provider

import (
	"github.com/firebase/genkit/go/ai"

	"github.com/loreweaver/loreweaver/internal/chat"
	"github.com/loreweaver/loreweaver/internal/content"
)

// toModelMessages converts conversation messages to the provider's wire
// shape. Tool calls and tool results become structured parts.
func toModelMessages(msgs []chat.Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toModelMessage(m))
	}
	return out
}

func toModelMessage(m chat.Message) *ai.Message {
	msg := &ai.Message{Role: toModelRole(m.Role)}

	if m.Role == chat.RoleTool {
		msg.Content = []*ai.Part{ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   m.ToolName,
			Ref:    m.ToolCallID,
			Output: content.ToText(m.Content),
		})}
		return msg
	}

	if text := content.ToText(m.Content); text != "" {
		msg.Content = append(msg.Content, ai.NewTextPart(text))
	}
	for _, call := range m.ToolCalls {
		msg.Content = append(msg.Content, ai.NewToolRequestPart(&ai.ToolRequest{
			Name:  call.Name,
			Ref:   call.ID,
			Input: call.Arguments,
		}))
	}
	return msg
}

func toModelRole(r chat.Role) ai.Role {
	switch r {
	case chat.RoleSystem:
		return ai.RoleSystem
	case chat.RoleAssistant:
		return ai.RoleModel
	case chat.RoleTool:
		return ai.RoleTool
	default:
		return ai.RoleUser
	}
}

// fromModelMessage converts a provider response message back into a
// conversation message. Text parts concatenate; tool request parts become
// structured calls. Response metadata passes through for the repair pass.
func fromModelMessage(msg *ai.Message) *chat.Message {
	out := &chat.Message{Role: chat.RoleAssistant, Metadata: msg.Metadata}

	var text string
	for _, part := range msg.Content {
		switch {
		case part.IsText():
			text += part.Text
		case part.IsToolRequest():
			req := part.ToolRequest
			out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
				Name:      req.Name,
				ID:        req.Ref,
				Arguments: toArgumentMap(req.Input),
			})
		}
	}
	out.Content = text
	return out
}

func toArgumentMap(input any) map[string]any {
	if m, ok := input.(map[string]any); ok {
		return m
	}
	if input == nil {
		return map[string]any{}
	}
	// Non-map inputs are preserved raw; the repair pass decodes strings.
	if s, ok := input.(string); ok {
		return map[string]any{"__raw": s}
	}
	return map[string]any{}
}

// toToolDefinitions converts the sanitized tool catalogue to provider
// declarations.
func toToolDefinitions(specs []chat.ToolSpec) []*ai.ToolDefinition {
	if len(specs) == 0 {
		return nil
	}
	defs := make([]*ai.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		defs = append(defs, &ai.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: s.Schema,
		})
	}
	return defs
}
