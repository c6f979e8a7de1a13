package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/erikprakoso/rag-axel-backend/db"
	"github.com/erikprakoso/rag-axel-backend/internal/api"
	"github.com/erikprakoso/rag-axel-backend/internal/config"
	"github.com/erikprakoso/rag-axel-backend/internal/conversation"
	"github.com/erikprakoso/rag-axel-backend/internal/ingest"
	"github.com/erikprakoso/rag-axel-backend/internal/knowledge"
	"github.com/erikprakoso/rag-axel-backend/internal/observability"
	"github.com/erikprakoso/rag-axel-backend/internal/rag"
)

// Setup creates and initializes the application. Call Close on the
// returned App to release everything.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, tear down everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, embedder, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g
	a.Embedder = embedder

	store, err := knowledge.New(knowledge.NewPgxQuerier(pool), embedder, logger.With("component", "knowledge"))
	if err != nil {
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}
	a.Knowledge = store

	a.Conversations = conversation.NewStore(conversation.Config{
		MaxHistory:    cfg.MaxHistory,
		TTL:           time.Duration(cfg.ConversationTTLSeconds) * time.Second,
		SweepInterval: time.Duration(cfg.SweepIntervalSeconds) * time.Second,
	}, logger.With("component", "conversation"))

	a.Recorder = conversation.NewRecorder(a.Conversations, cfg.RecorderQueueSize, logger.With("component", "recorder"))

	engine, err := rag.NewEngine(rag.Config{
		Conversations:      a.Conversations,
		Recorder:           a.Recorder,
		Retriever:          store,
		Generator:          rag.NewModelGenerator(g, cfg.FullModelName()),
		Logger:             logger.With("component", "rag"),
		TopK:               cfg.TopK,
		ScoreThreshold:     cfg.ScoreThreshold,
		RelevanceThreshold: cfg.RelevanceThreshold,
		HistoryWindow:      cfg.HistoryWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("creating rag engine: %w", err)
	}
	a.Engine = engine

	a.Indexer = ingest.NewIndexer(store, cfg.ChunkSize, cfg.ChunkOverlap, logger.With("component", "ingest"))

	server, err := api.NewServer(api.ServerConfig{
		Logger:        logger.With("component", "api"),
		Engine:        engine,
		Conversations: a.Conversations,
		Knowledge:     store,
		Indexer:       a.Indexer,
		Pool:          pool,
		CORSOrigins:   cfg.CORSOrigins,
		TrustProxy:    cfg.TrustProxy,
		RateLimitRPS:  cfg.RateLimitRPS,
		RateBurst:     cfg.RateLimitBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("creating http server: %w", err)
	}
	a.Server = server

	// Background expiry sweeps run until Close.
	bgCtx, cancel := context.WithCancel(context.Background())
	a.bgCancel = cancel
	go a.Conversations.Run(bgCtx)

	return a, nil
}

// provideOtelShutdown sets up tracing before Genkit initialization.
// Tracing is optional: with no endpoint configured the cleanup is a
// no-op.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "axel",
	}, logger)
	if err != nil {
		logger.Warn("setting up tracing, continuing without it", "error", err)
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the Ollama plugin and registers
// the chat model and the embedder. Ollama has no auto-discovery, so both
// must be defined explicitly.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, ai.Embedder, error) {
	ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
	g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
	if g == nil {
		return nil, nil, errors.New("initializing genkit with ollama provider")
	}

	ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
		Name: cfg.ModelName,
		Type: "chat",
	}, nil)
	ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)

	embedder := ollama.Embedder(g, cfg.OllamaHost)
	if embedder == nil {
		return nil, nil, fmt.Errorf("embedder %q not found at %q", cfg.EmbedderModel, cfg.OllamaHost)
	}

	logger.Info("initialized genkit with ollama provider",
		"model", cfg.ModelName, "embedder", cfg.EmbedderModel, "host", cfg.OllamaHost)

	return g, embedder, nil
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Fail fast if the database is unreachable.
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
