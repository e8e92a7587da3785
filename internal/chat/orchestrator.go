package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loreweaver/loreweaver/internal/content"
	"github.com/loreweaver/loreweaver/internal/log"
	"github.com/loreweaver/loreweaver/internal/stream"
)

// maxModelCalls caps the model/tool loop per turn. A model that keeps
// requesting tools past this bound terminates the turn with
// ErrMaxCyclesExceeded.
const maxModelCalls = 25

// Orchestrator runs the inner turn loop: invoke the model, route on the
// response, execute requested tools, repeat. It is an explicit state
// machine; each iteration of Run's loop is one state transition.
type Orchestrator struct {
	model      Model
	dispatcher Dispatcher
	logger     log.Logger
}

// OrchestratorConfig carries the orchestrator's dependencies.
type OrchestratorConfig struct {
	Model      Model
	Dispatcher Dispatcher
	Logger     log.Logger
}

// NewOrchestrator validates cfg and returns a ready orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("orchestrator: model is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("orchestrator: dispatcher is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Orchestrator{
		model:      cfg.Model,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
	}, nil
}

// phase is the orchestrator's explicit state.
type phase int

const (
	phaseInvoke phase = iota
	phaseRoute
	phaseTools
	phaseDone
)

// Run drives one turn to completion starting from the assembled messages,
// reporting progress through emit. It returns the final assistant text.
// Cancellation of ctx aborts between transitions and inside model calls.
func (o *Orchestrator) Run(ctx context.Context, msgs []Message, emit stream.Handler) (string, error) {
	state := &State{Messages: msgs}
	current := phaseInvoke

	for current != phaseDone {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("turn cancelled: %w", err)
		}

		var err error
		switch current {
		case phaseInvoke:
			current, err = o.invoke(ctx, state, emit)
		case phaseRoute:
			current = o.route(ctx, state)
		case phaseTools:
			current, err = o.runTools(ctx, state, emit)
		}
		if err != nil {
			return "", err
		}
	}

	last := state.Last()
	if last == nil || last.Role != RoleAssistant {
		return "", nil
	}
	return content.ToText(last.Content), nil
}

// invoke performs one model call, streaming when possible. A streaming
// failure falls back to a single blocking call before the turn is declared
// failed.
func (o *Orchestrator) invoke(ctx context.Context, state *State, emit stream.Handler) (phase, error) {
	if state.ModelCallCount >= maxModelCalls {
		return phaseDone, fmt.Errorf("%w: %d calls", ErrMaxCyclesExceeded, state.ModelCallCount)
	}
	state.ModelCallCount++

	ordered := orderForModel(state.Messages)
	tools := o.dispatcher.Specs()

	emit.Handle(stream.Event{
		Kind:   stream.EventModelStart,
		Prompt: promptEntries(ordered),
		Tools:  toolNames(tools),
	})

	cb := func(ctx context.Context, token string) error {
		emit.Handle(stream.Event{Kind: stream.EventModelToken, Token: token})
		return ctx.Err()
	}

	reply, err := o.model.Stream(ctx, ordered, tools, cb)
	if err != nil {
		if ctx.Err() != nil {
			return phaseDone, fmt.Errorf("model call cancelled: %w", ctx.Err())
		}
		o.logger.WarnContext(ctx, "streaming call failed, retrying without streaming",
			"call", state.ModelCallCount, "error", err)
		reply, err = o.model.Invoke(ctx, ordered, tools)
		if err != nil {
			return phaseDone, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
	}

	repairToolCalls(ctx, o.logger, reply)
	state.Append(*reply)

	emit.Handle(stream.Event{
		Kind:       stream.EventModelEnd,
		ResultText: content.ToText(reply.Content),
		ToolCalls:  callSummaries(reply.ToolCalls),
	})
	return phaseRoute, nil
}

// route decides the next phase from the latest assistant message: tool calls
// continue the loop, anything else ends the turn.
func (o *Orchestrator) route(ctx context.Context, state *State) phase {
	last := state.Last()
	if last != nil && len(last.ToolCalls) > 0 {
		return phaseTools
	}
	return phaseDone
}

// runTools executes the pending calls sequentially in request order. Tool
// failures become error results in the conversation; only cancellation
// aborts the turn.
func (o *Orchestrator) runTools(ctx context.Context, state *State, emit stream.Handler) (phase, error) {
	last := state.Last()
	if last == nil {
		return phaseInvoke, nil
	}
	calls := last.ToolCalls

	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return phaseDone, fmt.Errorf("tool execution cancelled: %w", err)
		}

		emit.Handle(stream.Event{
			Kind:      stream.EventToolStart,
			ToolName:  call.Name,
			ToolInput: call.Arguments,
		})

		result, ok := o.dispatcher.Dispatch(ctx, call)
		if !ok {
			o.logger.WarnContext(ctx, "skipping tool call without id", "tool", call.Name)
			continue
		}
		state.Append(result.Message())

		endEvent := stream.Event{
			Kind:       stream.EventToolEnd,
			ToolName:   call.Name,
			ToolOutput: result.Content,
		}
		if result.Status == StatusError {
			endEvent.ToolErr = result.Content
		}
		emit.Handle(endEvent)
	}
	return phaseInvoke, nil
}

// orderForModel produces the provider-facing ordering without mutating the
// turn state: system messages first, then rehydrated history, then the
// current turn's messages. The partition is stable, so relative order within
// each group is preserved.
func orderForModel(msgs []Message) []Message {
	ordered := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			ordered = append(ordered, m)
		}
	}
	for _, m := range msgs {
		if m.Role != RoleSystem && m.IsHistory {
			ordered = append(ordered, m)
		}
	}
	for _, m := range msgs {
		if m.Role != RoleSystem && !m.IsHistory {
			ordered = append(ordered, m)
		}
	}
	return ordered
}

func promptEntries(msgs []Message) []stream.PromptEntry {
	entries := make([]stream.PromptEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, stream.PromptEntry{
			Role:    string(m.Role),
			Content: promptText(m.Content),
		})
	}
	return entries
}

// promptText renders one prompt entry for the event feed. Strings pass
// through; structured content is JSON-stringified so fragment sequences
// stay visible instead of collapsing to empty text.
func promptText(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func toolNames(specs []ToolSpec) []string {
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
	}
	return names
}

func callSummaries(calls []ToolCall) []map[string]any {
	if len(calls) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(calls))
	for _, c := range calls {
		out = append(out, map[string]any{"name": c.Name, "args": c.Arguments, "id": c.ID})
	}
	return out
}
