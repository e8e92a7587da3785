package chat

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/loreweaver/loreweaver/internal/log"
)

//go:embed persona/default.txt
var defaultPersona string

// historyWindow is the number of stored messages rehydrated per turn.
const historyWindow = 20

// Assembler builds the model-ready conversation for a turn: persona system
// prompt, recalled memory, a bounded history window, and the current
// utterance.
type Assembler struct {
	store    HistoryStore
	recaller MemoryRecaller
	logger   log.Logger

	personaPath string
}

// AssemblerConfig carries the assembler's dependencies. Recaller is
// optional; PersonaPath overrides the embedded persona when set.
type AssemblerConfig struct {
	Store       HistoryStore
	Recaller    MemoryRecaller
	Logger      log.Logger
	PersonaPath string
}

// NewAssembler validates cfg and returns a ready assembler.
func NewAssembler(cfg AssemblerConfig) (*Assembler, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("assembler: store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Assembler{
		store:       cfg.Store,
		recaller:    cfg.Recaller,
		logger:      cfg.Logger,
		personaPath: cfg.PersonaPath,
	}, nil
}

// Assemble produces the ordered message list for one turn: system persona
// first, then history oldest-first tagged IsHistory, then the current user
// message. History fetch failures degrade to an empty window so a turn can
// proceed without its past.
func (a *Assembler) Assemble(ctx context.Context, sessionID uuid.UUID, input string) ([]Message, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}

	msgs := []Message{NewSystemMessage(a.systemPrompt(ctx, sessionID, input))}

	history, err := a.history(ctx, sessionID, input)
	if err != nil {
		a.logger.WarnContext(ctx, "history fetch failed, proceeding without history",
			"session_id", sessionID, "error", err)
	} else {
		msgs = append(msgs, history...)
	}

	msgs = append(msgs, NewUserMessage(input))
	return msgs, nil
}

// systemPrompt joins the persona with any recalled memory. Memory failures
// are logged and ignored.
func (a *Assembler) systemPrompt(ctx context.Context, sessionID uuid.UUID, input string) string {
	persona := a.persona(ctx)
	if a.recaller == nil {
		return persona
	}

	recalled, err := a.recaller.Recall(ctx, input, sessionID, 3)
	if err != nil {
		a.logger.WarnContext(ctx, "memory recall failed", "session_id", sessionID, "error", err)
		return persona
	}
	if strings.TrimSpace(recalled) == "" {
		return persona
	}
	return persona + "\n\n## What you remember about this conversation\n\n" + recalled
}

// persona returns the override file when configured and readable, otherwise
// the embedded default.
func (a *Assembler) persona(ctx context.Context) string {
	if a.personaPath == "" {
		return defaultPersona
	}
	data, err := os.ReadFile(a.personaPath)
	if err != nil {
		a.logger.WarnContext(ctx, "persona override unreadable, using default",
			"path", a.personaPath, "error", err)
		return defaultPersona
	}
	return string(data)
}

// history fetches a window of stored messages and converts them to
// IsHistory-tagged messages in chronological order.
//
// One extra record is fetched so that when the inbound user message was
// already persisted before assembly, the duplicate newest record can be
// dropped without shrinking the window.
func (a *Assembler) history(ctx context.Context, sessionID uuid.UUID, input string) ([]Message, error) {
	records, err := a.store.FindRecent(ctx, sessionID, historyWindow+1)
	if err != nil {
		return nil, fmt.Errorf("find recent messages: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Newest first from the store. Drop any user record that is exactly
	// the current utterance, then cap the window. The persisted copy of
	// the inbound message must not echo back as history, and a repeated
	// submission would otherwise double up.
	filtered := make([]HistoryRecord, 0, len(records))
	for _, rec := range records {
		if rec.Role == "user" && rec.Content == input {
			continue
		}
		filtered = append(filtered, rec)
	}
	records = filtered
	if len(records) > historyWindow {
		records = records[:historyWindow]
	}

	msgs := make([]Message, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		role := RoleUser
		if rec.Role != "user" {
			role = RoleAssistant
		}
		msgs = append(msgs, Message{Role: role, Content: rec.Content, IsHistory: true})
	}
	return msgs, nil
}
