package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/loreweaver/loreweaver/internal/log"
	"github.com/loreweaver/loreweaver/internal/stream"
)

// turnRunner drives one conversational turn, delivering chunks to the sink.
// *chat.Engine satisfies this.
type turnRunner interface {
	Turn(ctx context.Context, sessionID uuid.UUID, input string, sink stream.Sink) error
}

// titler generates a short session title from the first user message.
// *session.Titler satisfies this.
type titler interface {
	Title(ctx context.Context, input string) (string, error)
}

// SSE event names beyond the chunk protocol's own types.
const (
	eventSession = "session" // Sent first: the session the turn runs in
	eventTitle   = "title"   // Sent after done when a title was generated
)

// chatHandler serves the streaming chat endpoint.
//
// POST /api/v1/chat accepts {"sessionId": "...", "message": "..."} and
// responds with an SSE stream. Each protocol chunk becomes one SSE event
// whose name is the chunk type (text_delta, agent_log, done, stream_error).
// A session event precedes the stream so clients learn the session ID when
// one was created implicitly.
type chatHandler struct {
	engine turnRunner
	store  sessionStore
	titler titler // nil disables automatic titles
	logger log.Logger
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
}

type titlePayload struct {
	Title string `json:"title"`
}

func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}
	if req.Message == "" {
		WriteError(w, http.StatusBadRequest, "missing_message", "message is required", h.logger)
		return
	}

	ctx := r.Context()

	sessionID, created, err := h.resolveSession(ctx, req.SessionID)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	if err := writeEvent(w, flusher, eventSession, sessionPayload{SessionID: sessionID.String()}); err != nil {
		h.logger.Debug("client gone before stream start", "error", err)
		return
	}

	sink := func(c stream.Chunk) {
		if err := writeEvent(w, flusher, c.Type, c); err != nil {
			// Write failure usually means the connection closed; the
			// turn keeps running so the exchange is still persisted.
			h.logger.Debug("failed to write chunk", "error", err)
		}
	}

	if err := h.engine.Turn(ctx, sessionID, req.Message, sink); err != nil {
		// The stream already carried the stream_error chunk.
		h.logger.Error("chat turn failed", "session_id", sessionID, "error", err)
		return
	}

	if created && h.titler != nil {
		h.autoTitle(ctx, w, flusher, sessionID, req.Message)
	}
}

// resolveSession parses the requested session ID, creating a fresh untitled
// session when none was supplied. Returns whether a session was created.
func (h *chatHandler) resolveSession(ctx context.Context, raw string) (uuid.UUID, bool, error) {
	if raw == "" {
		s, err := h.store.CreateSession(ctx, "")
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("create session: %w", err)
		}
		return s.ID, true, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("parse session ID: %w", err)
	}
	if _, err := h.store.Session(ctx, id); err != nil {
		return uuid.Nil, false, fmt.Errorf("load session: %w", err)
	}
	return id, false, nil
}

func (h *chatHandler) writeSessionError(w http.ResponseWriter, err error) {
	h.logger.Warn("failed to resolve chat session", "error", err)
	WriteError(w, http.StatusBadRequest, "invalid_session", "session could not be resolved", h.logger)
}

// autoTitle names a freshly created session after its first message and
// announces the title on the stream. Title failures are logged, never
// surfaced: the turn already succeeded.
func (h *chatHandler) autoTitle(ctx context.Context, w io.Writer, flusher http.Flusher, sessionID uuid.UUID, message string) {
	title, err := h.titler.Title(ctx, message)
	if err != nil {
		h.logger.Warn("failed to generate session title", "session_id", sessionID, "error", err)
		return
	}
	if err := h.store.RenameSession(ctx, sessionID, title); err != nil {
		h.logger.Warn("failed to store session title", "session_id", sessionID, "error", err)
		return
	}
	_ = writeEvent(w, flusher, eventTitle, titlePayload{Title: title})
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
