// Package app assembles the application: configuration, storage, the model
// provider, tools, and the chat engine, wired through constructor injection.
package app

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loreweaver/loreweaver/internal/chat"
	"github.com/loreweaver/loreweaver/internal/config"
	"github.com/loreweaver/loreweaver/internal/log"
	"github.com/loreweaver/loreweaver/internal/memory"
	"github.com/loreweaver/loreweaver/internal/session"
	"github.com/loreweaver/loreweaver/internal/tool"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	Engine   *chat.Engine
	Registry *tool.Registry
	Sessions *session.Store
	Memory   *memory.Store
	Titler   *session.Titler
	Archiver *session.Archiver

	otelCleanup func()
	dbCleanup   func()
	cancel      context.CancelFunc
}

// Close gracefully releases all resources in reverse dependency order.
// Safe to call on a partially initialized App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.cancel != nil {
		a.cancel()
	}
	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
