// Package api exposes the question-answering service over HTTP: the ask
// endpoint (JSON or SSE), document ingestion and search, conversation
// inspection, and health probes.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/erikprakoso/rag-axel-backend/internal/conversation"
)

// ServerConfig wires the API server.
type ServerConfig struct {
	Logger        *slog.Logger
	Engine        Asker               // Required
	Conversations *conversation.Store // Required
	Knowledge     Searcher            // Required
	Indexer       TextIndexer         // Required
	Pool          *pgxpool.Pool       // Optional: nil disables DB checks in /ready
	CORSOrigins   []string
	TrustProxy    bool
	RateLimitRPS  float64 // 0 = default 5 tokens/sec
	RateBurst     int     // 0 = default 10
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if cfg.Conversations == nil {
		return nil, errors.New("conversation store is required")
	}
	if cfg.Knowledge == nil {
		return nil, errors.New("knowledge store is required")
	}
	if cfg.Indexer == nil {
		return nil, errors.New("indexer is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ah := &askHandler{engine: cfg.Engine, logger: logger}
	ch := &conversationsHandler{store: cfg.Conversations, logger: logger}
	dh := &documentsHandler{store: cfg.Knowledge, indexer: cfg.Indexer, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/ask", ah.ask)

	mux.HandleFunc("GET /api/v1/conversations/{id}", ch.get)
	mux.HandleFunc("DELETE /api/v1/conversations/{id}", ch.delete)

	mux.HandleFunc("POST /api/v1/documents", dh.index)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", dh.deleteDoc)
	mux.HandleFunc("GET /api/v1/search", dh.search)
	mux.HandleFunc("GET /api/v1/collection", dh.collection)

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 10
	}
	rl := newRateLimiter(rps, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID precedes Logging so request_id appears in log attributes;
	// CORS precedes RateLimit so preflight OPTIONS gets its headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
