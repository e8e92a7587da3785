package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/loreweaver/loreweaver/internal/log"
)

type mockStore struct {
	records []HistoryRecord
	findErr error
	saved   []HistoryRecord
	saveErr error
}

func (s *mockStore) Save(ctx context.Context, sessionID uuid.UUID, role, content string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, HistoryRecord{Role: role, Content: content, SessionID: sessionID})
	return nil
}

func (s *mockStore) FindRecent(ctx context.Context, sessionID uuid.UUID, limit int32) ([]HistoryRecord, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if int32(len(s.records)) > limit {
		return s.records[:limit], nil
	}
	return s.records, nil
}

type mockRecaller struct {
	text string
	err  error
}

func (r *mockRecaller) Recall(ctx context.Context, query string, sessionID uuid.UUID, limit int) (string, error) {
	return r.text, r.err
}

func newTestAssembler(t *testing.T, store HistoryStore, recaller MemoryRecaller) *Assembler {
	t.Helper()
	a, err := NewAssembler(AssemblerConfig{Store: store, Recaller: recaller, Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	return a
}

func TestAssembleEmptyInput(t *testing.T) {
	a := newTestAssembler(t, &mockStore{}, nil)
	if _, err := a.Assemble(context.Background(), uuid.New(), "   "); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestAssembleShape(t *testing.T) {
	store := &mockStore{records: []HistoryRecord{
		// Newest first, as the store returns them.
		{Role: "ai", Content: "second answer"},
		{Role: "user", Content: "second question"},
		{Role: "ai", Content: "first answer"},
		{Role: "user", Content: "first question"},
	}}
	a := newTestAssembler(t, store, nil)

	msgs, err := a.Assemble(context.Background(), uuid.New(), "third question")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if msgs[0].Role != RoleSystem {
		t.Errorf("msgs[0].Role = %q, want system", msgs[0].Role)
	}
	last := msgs[len(msgs)-1]
	if last.Role != RoleUser || last.Content != "third question" || last.IsHistory {
		t.Errorf("last message = %+v", last)
	}

	// History is chronological and tagged.
	wantHistory := []string{"first question", "first answer", "second question", "second answer"}
	history := msgs[1 : len(msgs)-1]
	if len(history) != len(wantHistory) {
		t.Fatalf("history len = %d, want %d", len(history), len(wantHistory))
	}
	for i, want := range wantHistory {
		if history[i].Content != want {
			t.Errorf("history[%d] = %q, want %q", i, history[i].Content, want)
		}
		if !history[i].IsHistory {
			t.Errorf("history[%d] not tagged as history", i)
		}
	}
}

func TestAssembleDropsPersistedDuplicate(t *testing.T) {
	// The inbound message was saved before assembly, so the newest stored
	// record equals the current utterance.
	store := &mockStore{records: []HistoryRecord{
		{Role: "user", Content: "who rules Veldt?"},
		{Role: "ai", Content: "earlier answer"},
	}}
	a := newTestAssembler(t, store, nil)

	msgs, err := a.Assemble(context.Background(), uuid.New(), "who rules Veldt?")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	var occurrences int
	for _, m := range msgs {
		if m.Content == "who rules Veldt?" {
			occurrences++
		}
	}
	if occurrences != 1 {
		t.Errorf("current utterance appears %d times, want 1", occurrences)
	}
}

func TestAssembleDropsOlderDuplicate(t *testing.T) {
	// An identical submission deeper in the window is dropped too, not
	// just the freshly persisted head record.
	store := &mockStore{records: []HistoryRecord{
		{Role: "user", Content: "who rules Veldt?"},
		{Role: "ai", Content: "earlier answer"},
		{Role: "user", Content: "who rules Veldt?"},
		{Role: "ai", Content: "oldest answer"},
	}}
	a := newTestAssembler(t, store, nil)

	msgs, err := a.Assemble(context.Background(), uuid.New(), "who rules Veldt?")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	var occurrences int
	for _, m := range msgs {
		if m.Content == "who rules Veldt?" {
			occurrences++
		}
	}
	if occurrences != 1 {
		t.Errorf("current utterance appears %d times, want 1", occurrences)
	}

	// An identical assistant reply is not touched.
	var answers int
	for _, m := range msgs {
		if m.Role == RoleAssistant {
			answers++
		}
	}
	if answers != 2 {
		t.Errorf("assistant history len = %d, want 2", answers)
	}
}

func TestAssembleWindowCap(t *testing.T) {
	var records []HistoryRecord
	for i := 0; i < 30; i++ {
		records = append(records, HistoryRecord{Role: "user", Content: fmt.Sprintf("msg-%d", i)})
	}
	a := newTestAssembler(t, &mockStore{records: records}, nil)

	msgs, err := a.Assemble(context.Background(), uuid.New(), "now")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	// system + window + current
	if want := 1 + historyWindow + 1; len(msgs) != want {
		t.Errorf("len(msgs) = %d, want %d", len(msgs), want)
	}
}

func TestAssembleSurvivesStoreFailure(t *testing.T) {
	a := newTestAssembler(t, &mockStore{findErr: errors.New("connection refused")}, nil)

	msgs, err := a.Assemble(context.Background(), uuid.New(), "hello")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("len(msgs) = %d, want 2 (system + user)", len(msgs))
	}
}

func TestAssembleRecalledMemory(t *testing.T) {
	a := newTestAssembler(t, &mockStore{}, &mockRecaller{text: "The author renamed Veldt to Velt in March."})

	msgs, err := a.Assemble(context.Background(), uuid.New(), "hello")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	system, _ := msgs[0].Content.(string)
	if !strings.Contains(system, "renamed Veldt") {
		t.Errorf("system prompt missing recalled memory: %q", system)
	}
	if !strings.Contains(system, "Loreweaver") {
		t.Errorf("system prompt missing persona: %q", system)
	}
}

func TestAssembleRecallFailureIgnored(t *testing.T) {
	a := newTestAssembler(t, &mockStore{}, &mockRecaller{err: errors.New("embedding service down")})

	msgs, err := a.Assemble(context.Background(), uuid.New(), "hello")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	system, _ := msgs[0].Content.(string)
	if !strings.Contains(system, "Loreweaver") {
		t.Errorf("system prompt missing persona: %q", system)
	}
}
