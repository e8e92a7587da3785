package stream

import (
	"log/slog"
	"sync"

	"github.com/loreweaver/loreweaver/internal/content"
)

// Node name reported in agent_log chunks for model invocations.
const modelNodeName = "model"

// Translator consumes the orchestrator's event feed and emits Chunks to a
// registered sink, in event order. It also accumulates streamed tokens into
// the turn's full text.
//
// A Translator serves exactly one turn. Handle, Done and Fail must be called
// from a single goroutine; the internal mutex only guards against a sink
// inspecting state concurrently.
type Translator struct {
	sink   Sink
	logger *slog.Logger

	mu       sync.Mutex
	fullText []byte
	closed   bool
}

// NewTranslator creates a translator forwarding chunks to sink.
func NewTranslator(sink Sink, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{sink: sink, logger: logger}
}

// Handle maps one orchestrator event to zero or one chunk.
// Empty tokens are swallowed; everything else emits.
func (t *Translator) Handle(ev Event) {
	switch ev.Kind {
	case EventModelStart:
		t.emit(Chunk{
			Type:     TypeAgentLog,
			SubType:  LogNodeEnter,
			NodeName: modelNodeName,
			Data: map[string]any{
				"prompt": ev.Prompt,
				"tools":  ev.Tools,
			},
		})
	case EventModelToken:
		if ev.Token == "" {
			return
		}
		t.mu.Lock()
		t.fullText = append(t.fullText, ev.Token...)
		t.mu.Unlock()
		t.emit(Chunk{Type: TypeTextDelta, Content: ev.Token})
	case EventModelEnd:
		t.emit(Chunk{
			Type:     TypeAgentLog,
			SubType:  LogNodeExit,
			NodeName: modelNodeName,
			Data: map[string]any{
				"result":    ev.ResultText,
				"toolCalls": ev.ToolCalls,
			},
		})
	case EventToolStart:
		t.emit(Chunk{
			Type:     TypeAgentLog,
			SubType:  LogToolStart,
			NodeName: ev.ToolName,
			Data:     map[string]any{"input": ev.ToolInput},
		})
	case EventToolEnd:
		data := map[string]any{"output": ev.ToolOutput}
		if ev.ToolErr != "" {
			data["error"] = ev.ToolErr
		}
		t.emit(Chunk{
			Type:     TypeAgentLog,
			SubType:  LogToolEnd,
			NodeName: ev.ToolName,
			Data:     data,
		})
	}
}

// FullText returns the text accumulated from streamed tokens so far.
func (t *Translator) FullText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.fullText)
}

// Done terminates the stream with a single done chunk carrying the
// normalized full content. finalText overrides the accumulated token buffer
// when the model produced its answer without streaming.
func (t *Translator) Done(finalText string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.logger.Warn("done after stream already terminated")
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.sink(Chunk{
		Type:        TypeDone,
		FullContent: content.ToParts(finalText),
	})
}

// Fail terminates the stream with a single stream_error chunk.
// No done chunk follows an error chunk.
func (t *Translator) Fail(message string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.logger.Warn("error after stream already terminated", "message", message)
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.sink(Chunk{Type: TypeError, Message: message})
}

func (t *Translator) emit(c Chunk) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		// Late events after termination are dropped, not re-opened.
		t.logger.Debug("dropping chunk after stream termination", "type", c.Type)
		return
	}
	t.sink(c)
}
