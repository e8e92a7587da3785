// Package chat implements the turn engine: context assembly, the
// model/tool orchestration state machine, and the outer turn boundary that
// persists the exchange and feeds the streaming translator.
package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

// Message roles. RoleTool marks tool-result messages fed back to the model.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one unit of conversation, created in memory per turn or
// rehydrated from storage.
//
// Content is opaque: a string, or a sequence of provider-shaped fragments
// (see internal/content). IsHistory marks messages rehydrated from the store;
// it drives in-turn ordering only and is never persisted.
type Message struct {
	Role       Role
	Content    any
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
	IsHistory  bool

	// Metadata carries provider-specific response fields. The tool-call
	// repair pass reads it; nothing else should.
	Metadata map[string]any
}

// NewUserMessage creates a user message with plain text content.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// NewSystemMessage creates a system message with plain text content.
func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// ToolCall is a structured request, emitted by the model, to invoke a named
// capability. A call without an ID cannot be answered and is skipped by the
// dispatcher.
type ToolCall struct {
	Name      string
	Arguments map[string]any
	ID        string
}

// ToolResult statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ToolResult is the outcome of one dispatched tool call. Errors are data:
// they flow back to the model as conversation content, never as Go errors.
type ToolResult struct {
	ToolCallID string
	ToolName   string
	Content    string
	Status     string
}

// Message converts the result into the tool-result message appended to the
// conversation.
func (r ToolResult) Message() Message {
	return Message{Role: RoleTool, Content: r.Content, ToolCallID: r.ToolCallID, ToolName: r.ToolName}
}

// ToolSpec describes one capability advertised to the model provider.
// Schema is a JSON-schema object already sanitized for provider quirks.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// State is the orchestrator's working set for one turn. Messages is
// append-only within a turn; ordering is re-derived centrally before each
// model call (see orderForModel) and never re-sorted elsewhere.
type State struct {
	Messages       []Message
	ModelCallCount int
}

// Append adds messages to the turn's conversation.
func (s *State) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// Last returns the most recently appended message, or nil when empty.
func (s *State) Last() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// StreamFunc receives incremental tokens during a streaming model call.
// Returning an error aborts the stream.
type StreamFunc func(ctx context.Context, token string) error

// Model is the boundary with the language-model provider. Implementations
// live in internal/provider; tests use internal/testutil.
type Model interface {
	// Invoke performs a blocking call and returns the assistant message.
	Invoke(ctx context.Context, msgs []Message, tools []ToolSpec) (*Message, error)

	// Stream performs a streaming call, delivering tokens to cb as they
	// arrive, and returns the complete assistant message at the end.
	Stream(ctx context.Context, msgs []Message, tools []ToolSpec, cb StreamFunc) (*Message, error)
}

// Dispatcher executes tool calls requested by the model.
type Dispatcher interface {
	// Dispatch runs one call. ok is false when the call was skipped
	// (missing ID) and no result message should be appended.
	Dispatch(ctx context.Context, call ToolCall) (result ToolResult, ok bool)

	// Specs returns the sanitized tool catalogue advertised to the model.
	Specs() []ToolSpec
}

// HistoryRecord is one persisted message as stored, newest-first from
// FindRecent. Persisted roles are "user" and "ai".
type HistoryRecord struct {
	ID        int64
	Role      string
	Content   string
	SessionID uuid.UUID
}

// HistoryStore is the persistence boundary the engine and assembler consume.
type HistoryStore interface {
	// Save appends one message record for the session.
	Save(ctx context.Context, sessionID uuid.UUID, role, content string) error

	// FindRecent returns up to limit records, newest first.
	FindRecent(ctx context.Context, sessionID uuid.UUID, limit int32) ([]HistoryRecord, error)
}

// MemoryRecaller surfaces long-term memory for the assembler's persona
// suffix. Implementations may return empty text with no error.
type MemoryRecaller interface {
	Recall(ctx context.Context, query string, sessionID uuid.UUID, limit int) (string, error)
}

// Sentinel errors for turn execution.
var (
	// ErrMaxCyclesExceeded indicates the tool-calling loop hit the safety cap.
	ErrMaxCyclesExceeded = errors.New("maximum model invocation cycles exceeded")

	// ErrEmptyInput indicates the inbound user utterance was empty.
	ErrEmptyInput = errors.New("empty input")

	// ErrModelUnavailable indicates both the streaming and fallback model
	// calls failed.
	ErrModelUnavailable = errors.New("model unavailable")
)
