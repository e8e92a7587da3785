// Package stream defines the UI-facing streaming protocol for a turn and the
// translator that maps orchestrator events onto it.
//
// A consumer registers a Sink and receives Chunks strictly in event order.
// Every turn's stream ends with exactly one terminal chunk, TypeDone on
// success or TypeError on failure, never both.
package stream

import "github.com/loreweaver/loreweaver/internal/content"

// Chunk type discriminators.
const (
	TypeTextDelta = "text_delta"
	TypeAgentLog  = "agent_log"
	TypeError     = "stream_error"
	TypeDone      = "done"
)

// Agent log sub-types.
const (
	LogNodeEnter = "node_enter"
	LogNodeExit  = "node_exit"
	LogToolStart = "tool_start"
	LogToolEnd   = "tool_end"
)

// Chunk is one unit of the UI-facing event protocol. Type selects the
// variant; the remaining fields are populated per variant:
//
//   - text_delta:   Content
//   - agent_log:    SubType, NodeName, Data
//   - stream_error: Message
//   - done:         FullContent
type Chunk struct {
	Type string `json:"type"`

	// text_delta
	Content string `json:"content,omitempty"`

	// agent_log
	SubType  string         `json:"subType,omitempty"`
	NodeName string         `json:"nodeName,omitempty"`
	Data     map[string]any `json:"data,omitempty"`

	// stream_error
	Message string `json:"message,omitempty"`

	// done
	FullContent []content.Part `json:"fullContent,omitempty"`
}

// Sink receives chunks as they are produced. Implementations must tolerate
// being called from the turn's goroutine; the translator never calls a sink
// concurrently with itself.
type Sink func(Chunk)
