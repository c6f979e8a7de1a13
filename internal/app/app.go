// Package app wires the service together: database pool, Genkit with the
// Ollama provider, knowledge and conversation stores, the rag engine, and
// the HTTP server. Entry points call Setup once and hold the returned App
// for the process lifetime.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/erikprakoso/rag-axel-backend/internal/api"
	"github.com/erikprakoso/rag-axel-backend/internal/config"
	"github.com/erikprakoso/rag-axel-backend/internal/conversation"
	"github.com/erikprakoso/rag-axel-backend/internal/ingest"
	"github.com/erikprakoso/rag-axel-backend/internal/knowledge"
	"github.com/erikprakoso/rag-axel-backend/internal/rag"
)

// App is the application container.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Genkit        *genkit.Genkit
	Embedder      ai.Embedder
	DBPool        *pgxpool.Pool
	Knowledge     *knowledge.Store
	Conversations *conversation.Store
	Recorder      *conversation.Recorder
	Engine        *rag.Engine
	Indexer       *ingest.Indexer
	Server        *api.Server

	// Lifecycle
	bgCancel    func()
	otelCleanup func()
}

// Close releases all resources. Safe to call on a partially initialized
// App; Setup uses it for teardown when construction fails midway.
//
// Order matters: the sweep goroutine stops first, then the recorder
// drains its queue into the conversation store, then the pool closes,
// and the tracer flushes last.
func (a *App) Close() error {
	a.Logger.Info("shutting down")

	if a.bgCancel != nil {
		a.bgCancel()
	}
	if a.Recorder != nil {
		a.Recorder.Close()
	}
	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
