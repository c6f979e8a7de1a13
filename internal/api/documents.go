package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erikprakoso/rag-axel-backend/internal/knowledge"
)

// maxDocumentBytes bounds ingestion payloads.
const maxDocumentBytes = 4 * 1024 * 1024

// Searcher is the slice of the knowledge store the document handlers
// need.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Passage, error)
	Count(ctx context.Context, domain string) (int, error)
	Delete(ctx context.Context, docID string) error
}

// TextIndexer ingests raw text into the knowledge store.
type TextIndexer interface {
	IndexText(ctx context.Context, source, domain, text string) (int, error)
}

type documentsHandler struct {
	store   Searcher
	indexer TextIndexer
	logger  *slog.Logger
}

type indexRequest struct {
	Source string `json:"source"`
	Domain string `json:"domain,omitempty"`
	Text   string `json:"text"`
}

type indexResponse struct {
	Source      string `json:"source"`
	ChunksAdded int    `json:"chunks_added"`
}

// index ingests one text document: chunk, embed, store.
func (h *documentsHandler) index(w http.ResponseWriter, r *http.Request) {
	var body indexRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", h.logger)
		return
	}
	if strings.TrimSpace(body.Source) == "" {
		writeError(w, http.StatusBadRequest, "missing_source", "source is required", h.logger)
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "missing_text", "text is required", h.logger)
		return
	}

	added, err := h.indexer.IndexText(r.Context(), body.Source, body.Domain, body.Text)
	if err != nil {
		h.logger.Error("indexing failed", "source", body.Source, "error", err)
		writeError(w, http.StatusInternalServerError, "index_failed", "failed to index document", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, indexResponse{Source: body.Source, ChunksAdded: added})
}

// deleteDoc removes one stored chunk by ID.
func (h *documentsHandler) deleteDoc(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_id", "document id is required", h.logger)
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.logger.Error("document delete failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete document", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchResponse struct {
	Query    string              `json:"query"`
	Passages []knowledge.Passage `json:"passages"`
}

// search runs a raw semantic search without conversation context or
// generation, for debugging retrieval quality.
func (h *documentsHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "q parameter is required", h.logger)
		return
	}

	opts := []knowledge.SearchOption{}
	if k, err := strconv.Atoi(r.URL.Query().Get("top_k")); err == nil {
		opts = append(opts, knowledge.WithTopK(k))
	}
	if domain := r.URL.Query().Get("domain"); domain != "" {
		opts = append(opts, knowledge.WithDomain(domain))
	}

	passages, err := h.store.Search(r.Context(), query, opts...)
	if err != nil {
		h.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search_failed", "failed to search documents", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Query: query, Passages: passages})
}

type collectionResponse struct {
	DocumentCount int `json:"document_count"`
}

// collection reports how many chunks are stored, optionally per domain.
func (h *documentsHandler) collection(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.Count(r.Context(), r.URL.Query().Get("domain"))
	if err != nil {
		h.logger.Error("count failed", "error", err)
		writeError(w, http.StatusInternalServerError, "count_failed", "failed to count documents", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, collectionResponse{DocumentCount: count})
}
