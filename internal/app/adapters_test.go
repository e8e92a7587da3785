package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/loreweaver/loreweaver/internal/chat"
)

type stubModel struct {
	reply string
	err   error

	lastMsgs []chat.Message
}

func (m *stubModel) Invoke(_ context.Context, msgs []chat.Message, _ []chat.ToolSpec) (*chat.Message, error) {
	m.lastMsgs = msgs
	if m.err != nil {
		return nil, m.err
	}
	return &chat.Message{Role: chat.RoleAssistant, Content: m.reply}, nil
}

func (m *stubModel) Stream(ctx context.Context, msgs []chat.Message, tools []chat.ToolSpec, _ chat.StreamFunc) (*chat.Message, error) {
	return m.Invoke(ctx, msgs, tools)
}

func TestModelSummarizer(t *testing.T) {
	model := &stubModel{reply: "  The party mapped the delta and named its ruler.  "}
	s := &modelSummarizer{model: model}

	got, err := s.Summarize(context.Background(), "user: who rules the delta?\nai: Queen Sera.\n")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if got != "The party mapped the delta and named its ruler." {
		t.Errorf("summary not trimmed, got %q", got)
	}

	if len(model.lastMsgs) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(model.lastMsgs))
	}
	if model.lastMsgs[0].Role != chat.RoleSystem {
		t.Errorf("first message should be system, got %q", model.lastMsgs[0].Role)
	}
	if !strings.Contains(model.lastMsgs[1].Content.(string), "Queen Sera") {
		t.Error("transcript not passed to the model")
	}
}

func TestModelSummarizerError(t *testing.T) {
	s := &modelSummarizer{model: &stubModel{err: errors.New("offline")}}

	if _, err := s.Summarize(context.Background(), "user: hello\n"); err == nil {
		t.Fatal("expected error from failing model")
	}
}
