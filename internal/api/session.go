package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/loreweaver/loreweaver/internal/log"
	"github.com/loreweaver/loreweaver/internal/session"
)

// maxListOffset bounds pagination to prevent expensive deep scans.
const maxListOffset = 10000

// sessionStore is the slice of session.Store the handlers need.
type sessionStore interface {
	CreateSession(ctx context.Context, title string) (*session.Session, error)
	Session(ctx context.Context, id uuid.UUID) (*session.Session, error)
	ListSessions(ctx context.Context, limit, offset int32) ([]*session.Session, error)
	RenameSession(ctx context.Context, id uuid.UUID, title string) error
	DeleteSession(ctx context.Context, id uuid.UUID) error
	History(ctx context.Context, sessionID uuid.UUID) ([]session.Message, error)
}

// archiver compresses a session transcript into long-term memory.
// *session.Archiver satisfies this.
type archiver interface {
	Archive(ctx context.Context, sessionID uuid.UUID) error
}

// sessionHandler serves the session CRUD and archive endpoints.
type sessionHandler struct {
	store    sessionStore
	archiver archiver // nil disables POST /sessions/{id}/archive
	logger   log.Logger
}

type createSessionRequest struct {
	Title string `json:"title"`
}

type renameSessionRequest struct {
	Title string `json:"title"`
}

func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := queryInt32(r, "limit", 50)
	offset := queryInt32(r, "offset", 0)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 || offset > maxListOffset {
		WriteError(w, http.StatusBadRequest, "invalid_offset", "offset must be between 0 and 10000", h.logger)
		return
	}

	sessions, err := h.store.ListSessions(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list sessions", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions}, h.logger)
}

func (h *sessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}
	if len(req.Title) > session.MaxTitleLength {
		WriteError(w, http.StatusBadRequest, "title_too_long", "title must be 200 characters or fewer", h.logger)
		return
	}

	s, err := h.store.CreateSession(r.Context(), req.Title)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		WriteError(w, http.StatusInternalServerError, "create_failed", "failed to create session", h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, s, h.logger)
}

func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	s, err := h.store.Session(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, "get_failed", "failed to get session")
		return
	}

	WriteJSON(w, http.StatusOK, s, h.logger)
}

func (h *sessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	// Confirm the session exists so an empty transcript and a missing
	// session are distinguishable.
	if _, err := h.store.Session(r.Context(), id); err != nil {
		h.writeStoreError(w, err, "get_failed", "failed to get session")
		return
	}

	msgs, err := h.store.History(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load messages", "session_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "messages_failed", "failed to load messages", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"messages": msgs}, h.logger)
}

func (h *sessionHandler) rename(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req renameSessionRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	if err := h.store.RenameSession(r.Context(), id, req.Title); err != nil {
		if errors.Is(err, session.ErrTitleTooLong) {
			WriteError(w, http.StatusBadRequest, "title_too_long", "title must be 200 characters or fewer", h.logger)
			return
		}
		h.writeStoreError(w, err, "rename_failed", "failed to rename session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandler) archive(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		WriteError(w, http.StatusNotImplemented, "archive_disabled", "archival is not configured", h.logger)
		return
	}

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.archiver.Archive(r.Context(), id); err != nil {
		h.writeStoreError(w, err, "archive_failed", "failed to archive session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteSession(r.Context(), id); err != nil {
		h.writeStoreError(w, err, "delete_failed", "failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pathID parses the {id} path segment. Writes a 400 and returns false on
// malformed IDs.
func (h *sessionHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid session ID", h.logger)
		return uuid.Nil, false
	}
	return id, true
}

// writeStoreError maps store errors onto the HTTP response.
func (h *sessionHandler) writeStoreError(w http.ResponseWriter, err error, code, message string) {
	if errors.Is(err, session.ErrSessionNotFound) {
		WriteError(w, http.StatusNotFound, "not_found", "session not found", h.logger)
		return
	}
	h.logger.Error(message, "error", err)
	WriteError(w, http.StatusInternalServerError, code, message, h.logger)
}

// queryInt32 parses an int32 query parameter, falling back to def when the
// parameter is absent or malformed.
func queryInt32(r *http.Request, name string, def int32) int32 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return def
	}
	return int32(n)
}
