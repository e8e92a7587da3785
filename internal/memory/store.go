// Package memory stores long-term conversation memory: archived session
// summaries with vector embeddings for similarity recall.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/loreweaver/loreweaver/internal/log"
)

// VectorDimension is the embedding width; must match the migration's
// vector(768) column.
const VectorDimension int32 = 768

// EmbedTimeout bounds each embedding call.
const EmbedTimeout = 15 * time.Second

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Summary is one recalled memory row.
type Summary struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Text      string
	CreatedAt time.Time
}

// Store persists and recalls session summaries. Safe for concurrent use.
type Store struct {
	db       querier
	embedder ai.Embedder
	logger   log.Logger
}

// NewStore creates a memory store.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("memory: pool is required")
	}
	return newStore(pool, embedder, logger)
}

func newStore(db querier, embedder ai.Embedder, logger log.Logger) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("memory: embedder is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, embedder: embedder, logger: logger}, nil
}

// embed generates the vector for text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Add stores one summary for a session.
func (s *Store) Add(ctx context.Context, sessionID uuid.UUID, summary string) error {
	return s.add(ctx, s.db, sessionID, summary)
}

// AddTx stores one summary inside the caller's transaction, so the insert
// commits or rolls back with the rest of an archive. It implements
// session.MemorySink.
func (s *Store) AddTx(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, summary string) error {
	return s.add(ctx, tx, sessionID, summary)
}

func (s *Store) add(ctx context.Context, q querier, sessionID uuid.UUID, summary string) error {
	if strings.TrimSpace(summary) == "" {
		return fmt.Errorf("memory: empty summary")
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()
	vec, err := s.embed(embedCtx, summary)
	if err != nil {
		return err
	}

	if _, err := q.Exec(ctx, `
		INSERT INTO memory_summaries (session_id, summary, embedding)
		VALUES ($1, $2, $3)`,
		sessionID, summary, vec,
	); err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}

	s.logger.DebugContext(ctx, "stored memory summary", "session_id", sessionID)
	return nil
}

// Recall returns up to limit summaries for the session most similar to
// query, joined as a bullet list. It implements chat.MemoryRecaller.
// An empty result is not an error.
func (s *Store) Recall(ctx context.Context, query string, sessionID uuid.UUID, limit int) (string, error) {
	if limit <= 0 {
		limit = 3
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()
	vec, err := s.embed(embedCtx, query)
	if err != nil {
		return "", err
	}

	rows, err := s.db.Query(ctx, `
		SELECT summary
		FROM memory_summaries
		WHERE session_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		vec, sessionID, limit,
	)
	if err != nil {
		return "", fmt.Errorf("recall summaries: %w", err)
	}
	defer rows.Close()

	var parts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return "", fmt.Errorf("scan summary: %w", err)
		}
		parts = append(parts, "- "+text)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return strings.Join(parts, "\n"), nil
}

// Search returns the summaries across all sessions most similar to query.
// The lore_lookup tool is its main consumer.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 3
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()
	vec, err := s.embed(embedCtx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, summary, created_at
		FROM memory_summaries
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vec, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search summaries: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.SessionID, &sum.Text, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
