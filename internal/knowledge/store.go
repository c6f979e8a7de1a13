// Package knowledge stores document chunks with vector embeddings in
// PostgreSQL (pgvector) and serves semantic search over them.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// Store manages knowledge documents with vector search capabilities.
// It handles embedding generation and similarity search over PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store. The querier abstracts the database so tests can
// run against a fake.
func New(querier Querier, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
	if querier == nil {
		return nil, errors.New("querier is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: querier, embedder: embedder, logger: logger}, nil
}

// embed generates a vector embedding for one text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, errors.New("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Add embeds the document's content and upserts it. Re-adding an existing
// ID replaces its content, embedding, and metadata.
func (s *Store) Add(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return errors.New("document ID is required")
	}
	if doc.Content == "" {
		return fmt.Errorf("document %q has empty content", doc.ID)
	}

	embedding, err := s.embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("document %q: %w", doc.ID, err)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata for %q: %w", doc.ID, err)
	}

	err = s.queries.UpsertDocument(ctx, UpsertDocumentParams{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: &embedding,
		Metadata:  metadataJSON,
		CreatedAt: pgtype.Timestamptz{Time: doc.CreatedAt, Valid: !doc.CreatedAt.IsZero()},
	})
	if err != nil {
		return err
	}

	s.logger.Debug("added document", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// AddBatch adds documents one at a time and stops at the first failure,
// returning how many were stored.
func (s *Store) AddBatch(ctx context.Context, docs []Document) (int, error) {
	for i, doc := range docs {
		if err := s.Add(ctx, doc); err != nil {
			return i, fmt.Errorf("batch add stopped at %d/%d: %w", i, len(docs), err)
		}
	}
	return len(docs), nil
}

// Search embeds the query and returns the most similar passages, ordered
// by descending similarity. A timeout bounds both the embedding call and
// the vector query so a slow backend cannot hold the request open.
//
// Example:
//
//	passages, err := store.Search(ctx, "rate limiting",
//	    knowledge.WithTopK(3),
//	    knowledge.WithMinScore(0.2))
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Passage, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	queryEmbedding, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	rows, err := s.queries.SearchDocuments(queryCtx, SearchDocumentsParams{
		QueryEmbedding: &queryEmbedding,
		Domain:         cfg.domain,
		MinScore:       cfg.minScore,
		ResultLimit:    cfg.topK,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search: %w", err)
	}

	return s.rowsToPassages(rows), nil
}

// Count returns the number of stored documents, optionally restricted to
// a metadata domain. An empty domain counts everything.
func (s *Store) Count(ctx context.Context, domain string) (int, error) {
	count, err := s.queries.CountDocuments(ctx, domain)
	if err != nil {
		return 0, err
	}
	if count > math.MaxInt {
		return 0, fmt.Errorf("document count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}

// Delete removes a document by ID. Deleting an unknown ID is not an error.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if err := s.queries.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	s.logger.Debug("deleted document", "id", docID)
	return nil
}

func (s *Store) rowsToPassages(rows []SearchDocumentsRow) []Passage {
	passages := make([]Passage, 0, len(rows))
	for _, row := range rows {
		var metadata map[string]string
		if len(row.Metadata) > 0 {
			if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
				s.logger.Warn("failed to parse document metadata",
					"document_id", row.ID, "error", err)
				metadata = nil
			}
		}

		var createdAt time.Time
		if row.CreatedAt.Valid {
			createdAt = row.CreatedAt.Time
		}

		passages = append(passages, Passage{
			Document: Document{
				ID:        row.ID,
				Content:   row.Content,
				Metadata:  metadata,
				CreatedAt: createdAt,
			},
			Score: row.Similarity,
		})
	}
	return passages
}
