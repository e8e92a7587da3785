package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/loreweaver/loreweaver/internal/log"
	"github.com/loreweaver/loreweaver/internal/stream"
)

// Persisted role values. Stored history uses "ai" for assistant turns.
const (
	storedRoleUser = "user"
	storedRoleAI   = "ai"
)

// Engine is the outer turn boundary. It persists the exchange, assembles
// context, drives the orchestrator, and terminates the chunk stream with
// exactly one done or stream_error.
type Engine struct {
	assembler    *Assembler
	orchestrator *Orchestrator
	store        HistoryStore
	logger       log.Logger
}

// EngineConfig carries the engine's dependencies.
type EngineConfig struct {
	Assembler    *Assembler
	Orchestrator *Orchestrator
	Store        HistoryStore
	Logger       log.Logger
}

// NewEngine validates cfg and returns a ready engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Assembler == nil {
		return nil, fmt.Errorf("engine: assembler is required")
	}
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("engine: orchestrator is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Engine{
		assembler:    cfg.Assembler,
		orchestrator: cfg.Orchestrator,
		store:        cfg.Store,
		logger:       cfg.Logger,
	}, nil
}

// Turn executes one conversational turn, delivering chunks to sink. The
// user message is persisted before orchestration so it survives a failed
// turn. The returned error mirrors the stream_error already sent to sink;
// callers log it rather than re-reporting it to the client.
func (e *Engine) Turn(ctx context.Context, sessionID uuid.UUID, input string, sink stream.Sink) error {
	translator := stream.NewTranslator(sink, e.logger)

	if err := e.run(ctx, sessionID, input, translator); err != nil {
		translator.Fail(userFacingMessage(err))
		return err
	}
	return nil
}

func (e *Engine) run(ctx context.Context, sessionID uuid.UUID, input string, translator *stream.Translator) error {
	if input == "" {
		return ErrEmptyInput
	}

	if err := e.store.Save(ctx, sessionID, storedRoleUser, input); err != nil {
		return fmt.Errorf("save user message: %w", err)
	}

	msgs, err := e.assembler.Assemble(ctx, sessionID, input)
	if err != nil {
		return fmt.Errorf("assemble context: %w", err)
	}

	final, err := e.orchestrator.Run(ctx, msgs, translator)
	if err != nil {
		return fmt.Errorf("orchestrate turn: %w", err)
	}
	if final == "" {
		final = translator.FullText()
	}

	if final != "" {
		if err := e.store.Save(ctx, sessionID, storedRoleAI, final); err != nil {
			// The user already has the answer on the wire. Losing the
			// stored copy is not worth failing the turn.
			e.logger.ErrorContext(ctx, "failed to persist assistant message",
				"session_id", sessionID, "error", err)
		}
	}

	translator.Done(final)
	return nil
}

// userFacingMessage reduces an internal error to the message carried by the
// stream_error chunk.
func userFacingMessage(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("The turn could not be completed: %v", err)
}
