package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/loreweaver/loreweaver/internal/log"
)

// Summarizer condenses a conversation into a short prose summary.
// internal/provider-backed implementations live in the app wiring.
type Summarizer interface {
	Summarize(ctx context.Context, conversation string) (string, error)
}

// MemorySink stores a summary for later recall, joining an already open
// transaction. internal/memory implements it.
type MemorySink interface {
	AddTx(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, summary string) error
}

// transcriptStore is the store surface the archiver needs.
type transcriptStore interface {
	History(ctx context.Context, sessionID uuid.UUID) ([]Message, error)
	CompressSession(ctx context.Context, sessionID uuid.UUID, storeSummary func(ctx context.Context, tx pgx.Tx) error) error
	ArchiveSession(ctx context.Context, sessionID uuid.UUID) error
}

// Archiver compresses finished sessions: the full transcript is summarized
// into long-term memory, the message rows are dropped, and the session is
// flagged archived. The session row and its summary survive.
type Archiver struct {
	store      transcriptStore
	summarizer Summarizer
	memory     MemorySink
	logger     log.Logger
}

// NewArchiver validates dependencies and returns a ready archiver.
func NewArchiver(store transcriptStore, summarizer Summarizer, memory MemorySink, logger log.Logger) (*Archiver, error) {
	if store == nil {
		return nil, fmt.Errorf("archiver: store is required")
	}
	if summarizer == nil {
		return nil, fmt.Errorf("archiver: summarizer is required")
	}
	if memory == nil {
		return nil, fmt.Errorf("archiver: memory sink is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Archiver{store: store, summarizer: summarizer, memory: memory, logger: logger}, nil
}

// Archive compresses one session. Sessions with no messages are archived
// without a summary. The summary insert, transcript delete, and archived
// flag commit or roll back together, so a partial failure leaves the
// session exactly as it was.
func (a *Archiver) Archive(ctx context.Context, sessionID uuid.UUID) error {
	msgs, err := a.store.History(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	if len(msgs) == 0 {
		if err := a.store.ArchiveSession(ctx, sessionID); err != nil {
			return err
		}
	} else {
		summary, err := a.summarizer.Summarize(ctx, transcript(msgs))
		if err != nil {
			return fmt.Errorf("summarize session %s: %w", sessionID, err)
		}

		var storeSummary func(ctx context.Context, tx pgx.Tx) error
		if strings.TrimSpace(summary) != "" {
			storeSummary = func(ctx context.Context, tx pgx.Tx) error {
				return a.memory.AddTx(ctx, tx, sessionID, summary)
			}
		}
		if err := a.store.CompressSession(ctx, sessionID, storeSummary); err != nil {
			return fmt.Errorf("compress session %s: %w", sessionID, err)
		}
	}

	a.logger.InfoContext(ctx, "archived session", "session_id", sessionID, "messages", len(msgs))
	return nil
}

// transcript renders messages as role-prefixed lines for the summarizer.
func transcript(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
