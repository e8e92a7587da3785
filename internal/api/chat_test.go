package api

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestChatStreamsTurn(t *testing.T) {
	srv, store, engine := newTestServer(t, nil)

	s, err := store.CreateSession(t.Context(), "ongoing")
	if err != nil {
		t.Fatal(err)
	}

	rec := doRequest(srv, http.MethodPost, "/api/v1/chat", `{"sessionId":"`+s.ID.String()+`","message":"tell me of the north"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected SSE content type, got %q", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: session") {
		t.Error("missing session event")
	}
	if !strings.Contains(body, "event: text_delta") {
		t.Error("missing text_delta event")
	}
	if !strings.Contains(body, "The archive remembers.") {
		t.Error("missing streamed reply text")
	}
	if !strings.Contains(body, "event: done") {
		t.Error("missing done event")
	}
	if strings.Contains(body, "event: title") {
		t.Error("existing session must not be retitled")
	}

	if len(engine.turns) != 1 || engine.turns[0] != s.ID {
		t.Errorf("engine not invoked with session, turns=%v", engine.turns)
	}
}

func TestChatCreatesSessionAndTitle(t *testing.T) {
	srv, store, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodPost, "/api/v1/chat", `{"message":"who rules the delta?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: session") {
		t.Fatal("missing session event")
	}
	if !strings.Contains(body, "event: title") {
		t.Error("missing title event for fresh session")
	}
	if !strings.Contains(body, "Dragon lineages") {
		t.Error("missing generated title")
	}

	sessions, err := store.ListSessions(t.Context(), 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 implicit session, got %d", len(sessions))
	}
	if sessions[0].Title != "Dragon lineages" {
		t.Errorf("title not stored, got %q", sessions[0].Title)
	}
}

func TestChatTitleFailureTolerated(t *testing.T) {
	srv, _, _ := newTestServer(t, func(cfg *ServerConfig) {
		cfg.Titler = &fakeTitler{err: errors.New("model offline")}
	})

	rec := doRequest(srv, http.MethodPost, "/api/v1/chat", `{"message":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: done") {
		t.Error("turn should complete without a title")
	}
	if strings.Contains(body, "event: title") {
		t.Error("no title event expected on titler failure")
	}
}

func TestChatMissingMessage(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodPost, "/api/v1/chat", `{"sessionId":"`+uuid.NewString()+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatUnknownSession(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodPost, "/api/v1/chat", `{"sessionId":"`+uuid.NewString()+`","message":"hi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatStreamErrorForwarded(t *testing.T) {
	srv, store, _ := newTestServer(t, func(cfg *ServerConfig) {
		cfg.Engine = &fakeEngine{err: errors.New("model unavailable")}
	})

	s, err := store.CreateSession(t.Context(), "doomed")
	if err != nil {
		t.Fatal(err)
	}

	rec := doRequest(srv, http.MethodPost, "/api/v1/chat", `{"sessionId":"`+s.ID.String()+`","message":"hi"}`)
	body := rec.Body.String()
	if !strings.Contains(body, "event: stream_error") {
		t.Error("missing stream_error event")
	}
	if strings.Contains(body, "event: done") {
		t.Error("failed turn must not emit done")
	}
	if strings.Contains(body, "event: title") {
		t.Error("failed turn must not be titled")
	}
}
