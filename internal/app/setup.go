package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loreweaver/loreweaver/db"
	"github.com/loreweaver/loreweaver/internal/chat"
	"github.com/loreweaver/loreweaver/internal/config"
	"github.com/loreweaver/loreweaver/internal/log"
	"github.com/loreweaver/loreweaver/internal/memory"
	"github.com/loreweaver/loreweaver/internal/observability"
	"github.com/loreweaver/loreweaver/internal/provider"
	"github.com/loreweaver/loreweaver/internal/security"
	"github.com/loreweaver/loreweaver/internal/session"
	"github.com/loreweaver/loreweaver/internal/tool"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = log.New(log.Config{})
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be registered before genkit.Init so model and tool
	// spans land on the same provider.
	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.Pool = pool

	g, qualifiedModel, err := provider.Init(ctx, cfg.Provider, cfg.ModelName, cfg.EmbedderModel, cfg.OllamaHost, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	client, err := provider.NewClient(provider.ClientConfig{
		Genkit:      g,
		ModelName:   qualifiedModel,
		Logger:      logger,
		Temperature: float64(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	embedder := provider.Embedder(g, cfg.Provider, cfg.EmbedderModel, cfg.OllamaHost)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Memory, err = memory.NewStore(pool, embedder, logger)
	if err != nil {
		return nil, err
	}

	a.Sessions = session.New(pool, logger)

	a.Registry, err = provideRegistry(a.Memory, logger)
	if err != nil {
		return nil, err
	}

	assembler, err := chat.NewAssembler(chat.AssemblerConfig{
		Store:    a.Sessions,
		Recaller: a.Memory,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	orchestrator, err := chat.NewOrchestrator(chat.OrchestratorConfig{
		Model:      client,
		Dispatcher: a.Registry,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	a.Engine, err = chat.NewEngine(chat.EngineConfig{
		Assembler:    assembler,
		Orchestrator: orchestrator,
		Store:        a.Sessions,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	a.Titler, err = session.NewTitler(client, logger)
	if err != nil {
		return nil, err
	}

	a.Archiver, err = session.NewArchiver(a.Sessions, &modelSummarizer{model: client}, a.Memory, logger)
	if err != nil {
		return nil, err
	}

	_, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	return a, nil
}

// provideOtelShutdown sets up tracing and returns a teardown that flushes
// spans with its own deadline, independent of the canceled parent context.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	shutdown, err := observability.Setup(ctx, observability.Config{
		AgentHost:   cfg.Tracing.AgentHost,
		Environment: cfg.Tracing.Environment,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil || shutdown == nil {
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates the PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// provideRegistry builds the tool registry with the built-in tools.
func provideRegistry(mem *memory.Store, logger log.Logger) (*tool.Registry, error) {
	registry := tool.NewRegistry(logger)

	currentTime, err := tool.NewCurrentTime()
	if err != nil {
		return nil, fmt.Errorf("creating current_time tool: %w", err)
	}

	loreLookup, err := tool.NewLoreLookup(&loreSearcher{memory: mem})
	if err != nil {
		return nil, fmt.Errorf("creating lore_lookup tool: %w", err)
	}

	fetchReference, err := tool.NewFetchReference(security.NewHTTP(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating fetch_reference tool: %w", err)
	}

	registry.Register(currentTime, loreLookup, fetchReference)
	return registry, nil
}
