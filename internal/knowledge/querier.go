package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// UpsertDocumentParams carries one document row for upsertDocumentSQL.
type UpsertDocumentParams struct {
	ID        string
	Content   string
	Embedding *pgvector.Vector
	Metadata  []byte
	CreatedAt pgtype.Timestamptz
}

// SearchDocumentsParams parameterizes a vector search.
type SearchDocumentsParams struct {
	QueryEmbedding *pgvector.Vector
	Domain         string  // empty means no domain filter
	MinScore       float32 // rows below this similarity are excluded
	ResultLimit    int
}

// SearchDocumentsRow is one vector search hit as read from the database.
type SearchDocumentsRow struct {
	ID         string
	Content    string
	Metadata   []byte
	CreatedAt  pgtype.Timestamptz
	Similarity float32
}

// Querier defines the database operations Store depends on. The interface
// lives on the consumer side so tests can substitute a fake without a
// running database.
type Querier interface {
	UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error
	SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error)
	CountDocuments(ctx context.Context, domain string) (int64, error)
	DeleteDocument(ctx context.Context, id string) error
}

const upsertDocumentSQL = `INSERT INTO documents (id, content, embedding, metadata, created_at)
	VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	ON CONFLICT (id) DO UPDATE SET
		content = EXCLUDED.content,
		embedding = EXCLUDED.embedding,
		metadata = EXCLUDED.metadata`

// searchDocumentsSQL ranks by cosine distance and reports similarity as
// 1 - distance. The domain filter and score floor are both optional and
// collapse to always-true predicates when unset.
const searchDocumentsSQL = `SELECT id, content, metadata, created_at,
		1 - (embedding <=> $1) AS similarity
	FROM documents
	WHERE ($2 = '' OR metadata->>'domain' = $2)
	  AND 1 - (embedding <=> $1) >= $3
	ORDER BY embedding <=> $1
	LIMIT $4`

const countDocumentsSQL = `SELECT COUNT(*) FROM documents
	WHERE ($1 = '' OR metadata->>'domain' = $1)`

const deleteDocumentSQL = `DELETE FROM documents WHERE id = $1`

// PgxQuerier implements Querier against PostgreSQL via a pgx pool.
type PgxQuerier struct {
	pool *pgxpool.Pool
}

// NewPgxQuerier wraps the pool. The pool's lifecycle stays with the caller.
func NewPgxQuerier(pool *pgxpool.Pool) *PgxQuerier {
	return &PgxQuerier{pool: pool}
}

func (q *PgxQuerier) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	var createdAt any
	if arg.CreatedAt.Valid {
		createdAt = arg.CreatedAt
	}
	_, err := q.pool.Exec(ctx, upsertDocumentSQL,
		arg.ID, arg.Content, arg.Embedding, arg.Metadata, createdAt)
	if err != nil {
		return fmt.Errorf("upsert document %q: %w", arg.ID, err)
	}
	return nil
}

func (q *PgxQuerier) SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error) {
	rows, err := q.pool.Query(ctx, searchDocumentsSQL,
		arg.QueryEmbedding, arg.Domain, arg.MinScore, arg.ResultLimit)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SearchDocumentsRow, error) {
		var r SearchDocumentsRow
		err := row.Scan(&r.ID, &r.Content, &r.Metadata, &r.CreatedAt, &r.Similarity)
		return r, err
	})
}

func (q *PgxQuerier) CountDocuments(ctx context.Context, domain string) (int64, error) {
	var count int64
	if err := q.pool.QueryRow(ctx, countDocumentsSQL, domain).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func (q *PgxQuerier) DeleteDocument(ctx context.Context, id string) error {
	_, err := q.pool.Exec(ctx, deleteDocumentSQL, id)
	if err != nil {
		return fmt.Errorf("delete document %q: %w", id, err)
	}
	return nil
}
