package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/loreweaver/loreweaver/internal/chat"
	"github.com/loreweaver/loreweaver/internal/content"
)

// MockModel provides deterministic model responses for tests. It matches the
// last user message against registered patterns and returns the paired
// reply; unmatched input gets the fallback text.
//
// It implements chat.Model. Thread-safe.
type MockModel struct {
	mu       sync.Mutex
	rules    []mockRule
	fallback string
	calls    []string
}

type mockRule struct {
	pattern string
	text    string
	tools   []chat.ToolCall
}

// NewMockModel creates a mock with the given fallback reply.
func NewMockModel(fallback string) *MockModel {
	return &MockModel{fallback: fallback}
}

// AddResponse registers a pattern-reply pair. Patterns match
// case-insensitively as substrings, first registration wins.
func (m *MockModel) AddResponse(pattern, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{pattern: strings.ToLower(pattern), text: text})
}

// AddToolResponse registers a pattern that triggers tool calls.
func (m *MockModel) AddToolResponse(pattern string, calls []chat.ToolCall, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{pattern: strings.ToLower(pattern), text: text, tools: calls})
}

// Calls returns the user messages seen so far.
func (m *MockModel) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Invoke implements chat.Model.
func (m *MockModel) Invoke(ctx context.Context, msgs []chat.Message, tools []chat.ToolSpec) (*chat.Message, error) {
	return m.respond(msgs), nil
}

// Stream implements chat.Model, delivering the reply text as one token.
func (m *MockModel) Stream(ctx context.Context, msgs []chat.Message, tools []chat.ToolSpec, cb chat.StreamFunc) (*chat.Message, error) {
	reply := m.respond(msgs)
	if cb != nil {
		if text := content.ToText(reply.Content); text != "" {
			if err := cb(ctx, text); err != nil {
				return nil, err
			}
		}
	}
	return reply, nil
}

func (m *MockModel) respond(msgs []chat.Message) *chat.Message {
	var userText string
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleUser {
			userText = content.ToText(msgs[i].Content)
			break
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, userText)

	lower := strings.ToLower(userText)
	for _, rule := range m.rules {
		if strings.Contains(lower, rule.pattern) {
			return &chat.Message{
				Role:      chat.RoleAssistant,
				Content:   rule.text,
				ToolCalls: append([]chat.ToolCall(nil), rule.tools...),
			}
		}
	}
	return &chat.Message{Role: chat.RoleAssistant, Content: m.fallback}
}
