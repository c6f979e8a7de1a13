package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/erikprakoso/rag-axel-backend/internal/conversation"
	"github.com/erikprakoso/rag-axel-backend/internal/knowledge"
	"github.com/erikprakoso/rag-axel-backend/internal/rag"
)

// stubAsker returns a fixed response and records the last request.
type stubAsker struct {
	resp      *rag.Response
	fragments []rag.Fragment
	streamErr error
	lastReq   rag.Request
}

func (s *stubAsker) Ask(_ context.Context, req rag.Request) *rag.Response {
	s.lastReq = req
	if s.resp != nil {
		return s.resp
	}
	return &rag.Response{ConversationID: uuid.New(), Answer: "stub answer", Outcome: rag.OutcomeAnswered}
}

func (s *stubAsker) AskStream(_ context.Context, req rag.Request, emit rag.StreamFunc) error {
	s.lastReq = req
	for _, f := range s.fragments {
		if err := emit(f); err != nil {
			return err
		}
	}
	return s.streamErr
}

// stubSearcher serves canned passages and counts.
type stubSearcher struct {
	passages  []knowledge.Passage
	count     int
	err       error
	deletedID string
	lastQuery string
	lastOpts  int
}

func (s *stubSearcher) Search(_ context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Passage, error) {
	s.lastQuery = query
	s.lastOpts = len(opts)
	return s.passages, s.err
}

func (s *stubSearcher) Count(_ context.Context, _ string) (int, error) {
	return s.count, s.err
}

func (s *stubSearcher) Delete(_ context.Context, docID string) error {
	s.deletedID = docID
	return s.err
}

type stubIndexer struct {
	chunks     int
	err        error
	lastSource string
	lastDomain string
	lastText   string
}

func (s *stubIndexer) IndexText(_ context.Context, source, domain, text string) (int, error) {
	s.lastSource = source
	s.lastDomain = domain
	s.lastText = text
	return s.chunks, s.err
}

func testConvStore() *conversation.Store {
	return conversation.NewStore(conversation.Config{
		MaxHistory:    20,
		TTL:           time.Hour,
		SweepInterval: time.Hour,
	}, slog.New(slog.DiscardHandler))
}

func newTestServer(t *testing.T) (*Server, *stubAsker) {
	t.Helper()
	asker := &stubAsker{}
	srv, err := NewServer(ServerConfig{
		Logger:        slog.New(slog.DiscardHandler),
		Engine:        asker,
		Conversations: testConvStore(),
		Knowledge:     &stubSearcher{},
		Indexer:       &stubIndexer{},
		CORSOrigins:   []string{"http://localhost:4200"},
		RateLimitRPS:  1000,
		RateBurst:     1000,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, asker
}

func TestNewServer(t *testing.T) {
	srv, _ := newTestServer(t)
	if srv.Handler() == nil {
		t.Fatal("NewServer().Handler() returned nil")
	}
}

func TestNewServerMissingDeps(t *testing.T) {
	base := func() ServerConfig {
		return ServerConfig{
			Engine:        &stubAsker{},
			Conversations: testConvStore(),
			Knowledge:     &stubSearcher{},
			Indexer:       &stubIndexer{},
		}
	}

	tests := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{"no engine", func(c *ServerConfig) { c.Engine = nil }},
		{"no conversations", func(c *ServerConfig) { c.Conversations = nil }},
		{"no knowledge", func(c *ServerConfig) { c.Knowledge = nil }},
		{"no indexer", func(c *ServerConfig) { c.Indexer = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			if _, err := NewServer(cfg); err == nil {
				t.Fatal("NewServer() expected error, got nil")
			}
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestReadyEndpointNoPool(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusOK {
		t.Errorf("GET /ready status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRequestIDOnAPIRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/collection", nil))

	if got := w.Header().Get("X-Request-ID"); got == "" {
		t.Error("API response missing X-Request-ID header")
	}
	if _, err := uuid.Parse(w.Header().Get("X-Request-ID")); err != nil {
		t.Errorf("X-Request-ID is not a UUID: %v", err)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ask", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/v1/ask status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}
