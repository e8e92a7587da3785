package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/loreweaver/loreweaver/internal/chat"
	"github.com/loreweaver/loreweaver/internal/log"
)

// Registry holds the tool catalogue for a session and dispatches calls. It
// implements chat.Dispatcher.
//
// Registration happens during setup; Dispatch and Specs are safe to call
// concurrently afterwards.
type Registry struct {
	tools  map[string]Tool
	order  []string
	logger log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds tools to the catalogue. Re-registering a name replaces the
// earlier tool.
func (r *Registry) Register(tools ...Tool) {
	for _, t := range tools {
		if _, exists := r.tools[t.Name()]; !exists {
			r.order = append(r.order, t.Name())
		}
		r.tools[t.Name()] = t
	}
}

// Specs returns the catalogue in registration order.
func (r *Registry) Specs() []chat.ToolSpec {
	specs := make([]chat.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Dispatch executes one call. Failures of any kind become error results so
// the model can react; a call without an ID cannot be answered and returns
// ok false.
func (r *Registry) Dispatch(ctx context.Context, call chat.ToolCall) (chat.ToolResult, bool) {
	if call.ID == "" {
		r.logger.WarnContext(ctx, "tool call missing id, skipping", "tool", call.Name)
		return chat.ToolResult{}, false
	}

	t, exists := r.tools[call.Name]
	if !exists {
		r.logger.WarnContext(ctx, "unknown tool requested", "tool", call.Name)
		return chat.ToolResult{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Content: fmt.Sprintf("Tool %q not found. Available tools: %s",
				call.Name, strings.Join(r.order, ", ")),
			Status: chat.StatusError,
		}, true
	}

	output, err := r.call(ctx, t, call.Arguments)
	if err != nil {
		r.logger.ErrorContext(ctx, "tool execution failed", "tool", call.Name, "error", err)
		return chat.ToolResult{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Content:    fmt.Sprintf("Error executing tool %s: %v", call.Name, err),
			Status:     chat.StatusError,
		}, true
	}

	return chat.ToolResult{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Content:    output,
		Status:     chat.StatusSuccess,
	}, true
}

// call isolates tool panics so one misbehaving tool cannot take down the
// turn.
func (r *Registry) call(ctx context.Context, t Tool, args map[string]any) (output string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return t.Call(ctx, args)
}
