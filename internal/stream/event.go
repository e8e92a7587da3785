package stream

// Event is one step of the orchestrator's internal feed, before translation
// into the UI protocol. Payloads are already reduced to transport-friendly
// shapes (strings and maps) so the translator needs no knowledge of
// conversation types.
type Event struct {
	Kind EventKind

	// ModelStart
	Prompt []PromptEntry
	Tools  []string

	// ModelToken
	Token string

	// ModelEnd
	ResultText string
	ToolCalls  []map[string]any

	// ToolStart / ToolEnd
	ToolName   string
	ToolInput  map[string]any
	ToolOutput string
	ToolErr    string
}

// Handler consumes orchestration events. *Translator is the production
// implementation.
type Handler interface {
	Handle(Event)
}

// EventKind discriminates Event variants.
type EventKind int

const (
	// EventModelStart precedes each model invocation.
	EventModelStart EventKind = iota
	// EventModelToken carries one incremental token from a streaming call.
	EventModelToken
	// EventModelEnd follows each model invocation.
	EventModelEnd
	// EventToolStart precedes each tool dispatch.
	EventToolStart
	// EventToolEnd follows each tool dispatch.
	EventToolEnd
)

// PromptEntry is one outbound message reduced to role and display content.
type PromptEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
