// Package session persists conversations and their sessions in PostgreSQL.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loreweaver/loreweaver/internal/chat"
	"github.com/loreweaver/loreweaver/internal/log"
)

// DB is the pgx surface the store consumes. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store manages sessions and messages. It implements chat.HistoryStore.
// Safe for concurrent use.
type Store struct {
	db     DB
	logger log.Logger
}

// New creates a store over db.
func New(db *pgxpool.Pool, logger log.Logger) *Store {
	return newStore(db, logger)
}

func newStore(db DB, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// CreateSession creates a new conversation session.
func (s *Store) CreateSession(ctx context.Context, title string) (*Session, error) {
	if len(title) > MaxTitleLength {
		return nil, ErrTitleTooLong
	}

	var sess Session
	err := s.db.QueryRow(ctx, `
		INSERT INTO sessions (title)
		VALUES ($1)
		RETURNING id, COALESCE(title, ''), archived, created_at, updated_at`,
		nullable(title),
	).Scan(&sess.ID, &sess.Title, &sess.Archived, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.DebugContext(ctx, "created session", "id", sess.ID, "title", sess.Title)
	return &sess, nil
}

// Session retrieves one session by ID.
func (s *Store) Session(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	err := s.db.QueryRow(ctx, `
		SELECT id, COALESCE(title, ''), archived, created_at, updated_at
		FROM sessions WHERE id = $1`,
		id,
	).Scan(&sess.ID, &sess.Title, &sess.Archived, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return &sess, nil
}

// ListSessions returns sessions ordered by most recent activity.
func (s *Store) ListSessions(ctx context.Context, limit, offset int32) ([]*Session, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, COALESCE(title, ''), archived, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.Archived, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// RenameSession updates a session's title.
func (s *Store) RenameSession(ctx context.Context, id uuid.UUID, title string) error {
	if len(title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE sessions SET title = $2, updated_at = now() WHERE id = $1`,
		id, nullable(title),
	)
	if err != nil {
		return fmt.Errorf("rename session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}

// ArchiveSession marks a session archived. Archived sessions stay readable
// but drop out of the default listing in clients that filter on the flag.
func (s *Store) ArchiveSession(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE sessions SET archived = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("archive session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}

// DeleteSession removes a session and, via cascade, its messages and
// memory summaries.
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}

// Save appends one message and bumps the session's activity timestamp. A
// per-session advisory lock serializes concurrent writers so interleaved
// turns cannot corrupt message ordering.
func (s *Store) Save(ctx context.Context, sessionID uuid.UUID, role, content string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Released automatically at commit or rollback.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sessionID.String()); err != nil {
		return fmt.Errorf("acquire session lock: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO messages (session_id, role, content) VALUES ($1, $2, $3)`,
		sessionID, role, content,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE sessions SET updated_at = now() WHERE id = $1`, sessionID,
	); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// FindRecent returns up to limit messages for the session, newest first.
func (s *Store) FindRecent(ctx context.Context, sessionID uuid.UUID, limit int32) ([]chat.HistoryRecord, error) {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, role, content
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find recent messages: %w", err)
	}
	defer rows.Close()

	var records []chat.HistoryRecord
	for rows.Next() {
		rec := chat.HistoryRecord{SessionID: sessionID}
		if err := rows.Scan(&rec.ID, &rec.Role, &rec.Content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// History returns the session's full message list in chronological order.
func (s *Store) History(ctx context.Context, sessionID uuid.UUID) ([]Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CompressSession finishes an archive in one transaction: storeSummary (if
// non-nil) runs against the transaction, the transcript is deleted, and the
// session is flagged archived. A failure at any step rolls everything back,
// so a stored summary never outlives its transcript and a dropped transcript
// never leaves the session unflagged. The same advisory lock as Save
// serializes with in-flight turns.
func (s *Store) CompressSession(ctx context.Context, id uuid.UUID, storeSummary func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin compress: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, id.String()); err != nil {
		return fmt.Errorf("acquire session lock: %w", err)
	}

	if storeSummary != nil {
		if err := storeSummary(ctx, tx); err != nil {
			return fmt.Errorf("store summary: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("drop transcript: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE sessions SET archived = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("archive session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit compress: %w", err)
	}
	return nil
}

// Clear deletes all messages for the session, keeping the session itself.
func (s *Store) Clear(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM messages WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}
	return nil
}

// nullable maps empty strings to NULL for optional text columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
