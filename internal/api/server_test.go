package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loreweaver/loreweaver/internal/log"
	"github.com/loreweaver/loreweaver/internal/session"
	"github.com/loreweaver/loreweaver/internal/stream"
)

// fakeStore is an in-memory sessionStore.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
	history  map[uuid.UUID][]session.Message

	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[uuid.UUID]*session.Session),
		history:  make(map[uuid.UUID][]session.Message),
	}
}

func (f *fakeStore) CreateSession(_ context.Context, title string) (*session.Session, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &session.Session{ID: uuid.New(), Title: title, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeStore) Session(_ context.Context, id uuid.UUID) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeStore) ListSessions(_ context.Context, _, _ int32) ([]*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*session.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) RenameSession(_ context.Context, id uuid.UUID, title string) error {
	if len(title) > session.MaxTitleLength {
		return session.ErrTitleTooLong
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return session.ErrSessionNotFound
	}
	s.Title = title
	return nil
}

func (f *fakeStore) DeleteSession(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return session.ErrSessionNotFound
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) History(_ context.Context, id uuid.UUID) ([]session.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[id], nil
}

// fakeEngine streams a fixed reply through the sink.
type fakeEngine struct {
	reply string
	err   error

	mu    sync.Mutex
	turns []uuid.UUID
}

func (f *fakeEngine) Turn(_ context.Context, sessionID uuid.UUID, _ string, sink stream.Sink) error {
	f.mu.Lock()
	f.turns = append(f.turns, sessionID)
	f.mu.Unlock()

	if f.err != nil {
		sink(stream.Chunk{Type: stream.TypeError, Message: "turn failed"})
		return f.err
	}
	sink(stream.Chunk{Type: stream.TypeTextDelta, Content: f.reply})
	sink(stream.Chunk{Type: stream.TypeDone})
	return nil
}

type fakeTitler struct {
	title string
	err   error
}

func (f *fakeTitler) Title(context.Context, string) (string, error) {
	return f.title, f.err
}

type fakeArchiver struct {
	called []uuid.UUID
	err    error
}

func (f *fakeArchiver) Archive(_ context.Context, id uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.called = append(f.called, id)
	return nil
}

// newTestServer builds a server with fakes and sensible test defaults.
func newTestServer(tb testingTB, mutate func(*ServerConfig)) (*Server, *fakeStore, *fakeEngine) {
	tb.Helper()

	store := newFakeStore()
	engine := &fakeEngine{reply: "The archive remembers."}
	cfg := ServerConfig{
		Logger:    log.NewNop(),
		Engine:    engine,
		Sessions:  store,
		Titler:    &fakeTitler{title: "Dragon lineages"},
		RateBurst: 1000,
		IsDev:     true,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := NewServer(cfg)
	if err != nil {
		tb.Fatalf("NewServer failed: %v", err)
	}
	return srv, store, engine
}

// testingTB narrows *testing.T for helpers shared across test files.
type testingTB interface {
	Helper()
	Fatalf(format string, args ...any)
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "192.0.2.1:54321"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}
