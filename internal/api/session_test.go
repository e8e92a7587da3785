package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/loreweaver/loreweaver/internal/session"
)

func TestCreateSession(t *testing.T) {
	srv, store, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodPost, "/api/v1/sessions", `{"title":"Maps of the north"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var got session.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if got.Title != "Maps of the north" {
		t.Errorf("expected title to round-trip, got %q", got.Title)
	}
	if _, err := store.Session(t.Context(), got.ID); err != nil {
		t.Errorf("session not persisted: %v", err)
	}
}

func TestCreateSessionRejectsLongTitle(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	body := `{"title":"` + strings.Repeat("x", session.MaxTitleLength+1) + `"}`
	rec := doRequest(srv, http.MethodPost, "/api/v1/sessions", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/api/v1/sessions/"+uuid.NewString(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetSessionInvalidID(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/api/v1/sessions/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListSessions(t *testing.T) {
	srv, store, _ := newTestServer(t, nil)

	for range 3 {
		if _, err := store.CreateSession(t.Context(), "chronicle"); err != nil {
			t.Fatal(err)
		}
	}

	rec := doRequest(srv, http.MethodGet, "/api/v1/sessions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Sessions []session.Session `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(resp.Sessions) != 3 {
		t.Errorf("expected 3 sessions, got %d", len(resp.Sessions))
	}
}

func TestListSessionsRejectsDeepOffset(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/api/v1/sessions?offset=99999", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRenameSession(t *testing.T) {
	srv, store, _ := newTestServer(t, nil)

	s, err := store.CreateSession(t.Context(), "untitled")
	if err != nil {
		t.Fatal(err)
	}

	rec := doRequest(srv, http.MethodPatch, "/api/v1/sessions/"+s.ID.String(), `{"title":"The sunken citadel"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	got, err := store.Session(t.Context(), s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "The sunken citadel" {
		t.Errorf("rename not applied, title is %q", got.Title)
	}
}

func TestDeleteSession(t *testing.T) {
	srv, store, _ := newTestServer(t, nil)

	s, err := store.CreateSession(t.Context(), "ephemeral")
	if err != nil {
		t.Fatal(err)
	}

	rec := doRequest(srv, http.MethodDelete, "/api/v1/sessions/"+s.ID.String(), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, err := store.Session(t.Context(), s.ID); err == nil {
		t.Error("session still present after delete")
	}
}

func TestSessionMessages(t *testing.T) {
	srv, store, _ := newTestServer(t, nil)

	s, err := store.CreateSession(t.Context(), "transcripts")
	if err != nil {
		t.Fatal(err)
	}
	store.history[s.ID] = []session.Message{
		{ID: 1, SessionID: s.ID, Role: "user", Content: "hello"},
		{ID: 2, SessionID: s.ID, Role: "ai", Content: "greetings"},
	}

	rec := doRequest(srv, http.MethodGet, "/api/v1/sessions/"+s.ID.String()+"/messages", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Messages []session.Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(resp.Messages))
	}
}

func TestArchiveSession(t *testing.T) {
	arch := &fakeArchiver{}
	srv, store, _ := newTestServer(t, func(cfg *ServerConfig) {
		cfg.Archiver = arch
	})

	s, err := store.CreateSession(t.Context(), "to archive")
	if err != nil {
		t.Fatal(err)
	}

	rec := doRequest(srv, http.MethodPost, "/api/v1/sessions/"+s.ID.String()+"/archive", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(arch.called) != 1 || arch.called[0] != s.ID {
		t.Errorf("archiver not invoked for session, calls=%v", arch.called)
	}
}

func TestArchiveSessionDisabled(t *testing.T) {
	srv, store, _ := newTestServer(t, nil)

	s, err := store.CreateSession(t.Context(), "no archiver")
	if err != nil {
		t.Fatal(err)
	}

	rec := doRequest(srv, http.MethodPost, "/api/v1/sessions/"+s.ID.String()+"/archive", "")
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}
