package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/erikprakoso/rag-axel-backend/internal/knowledge"
)

// supportedExtensions are the file types the indexer accepts.
var supportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// IngestStore is the slice of the knowledge store the Indexer needs.
type IngestStore interface {
	AddBatch(ctx context.Context, docs []knowledge.Document) (int, error)
}

// Result summarizes one indexing run.
type Result struct {
	FilesIndexed int           `json:"files_indexed"`
	FilesSkipped int           `json:"files_skipped"`
	ChunksAdded  int           `json:"chunks_added"`
	Duration     time.Duration `json:"duration"`
}

// Indexer chunks text sources and writes them to the knowledge store.
type Indexer struct {
	store        IngestStore
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
}

// NewIndexer creates an Indexer. Non-positive chunk geometry falls back
// to the defaults.
func NewIndexer(store IngestStore, chunkSize, chunkOverlap int, logger *slog.Logger) *Indexer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		store:        store,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
}

// chunkID derives a stable document ID from the source name and chunk
// index, so re-indexing the same source upserts instead of duplicating.
func chunkID(source string, index int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s#%d", source, index))
	return hex.EncodeToString(sum[:16])
}

// IndexText chunks one text and stores the chunks. source names the
// origin for attribution; domain is an optional retrieval filter tag.
func (ix *Indexer) IndexText(ctx context.Context, source, domain, text string) (int, error) {
	chunks := SplitText(text, ix.chunkSize, ix.chunkOverlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("source %q contains no indexable text", source)
	}

	docs := make([]knowledge.Document, 0, len(chunks))
	for i, chunk := range chunks {
		metadata := map[string]string{
			"source": source,
			"chunk":  fmt.Sprintf("%d", i),
		}
		if domain != "" {
			metadata["domain"] = domain
		}
		docs = append(docs, knowledge.Document{
			ID:       chunkID(source, i),
			Content:  chunk,
			Metadata: metadata,
		})
	}

	added, err := ix.store.AddBatch(ctx, docs)
	if err != nil {
		return added, fmt.Errorf("indexing %q: %w", source, err)
	}

	ix.logger.Info("indexed source", "source", source, "chunks", added)
	return added, nil
}

// IndexFile indexes one .txt or .md file. The file's base name becomes
// the source tag.
func (ix *Indexer) IndexFile(ctx context.Context, path, domain string) (int, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return 0, fmt.Errorf("unsupported file type %q (supported: .txt, .md)", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %q: %w", path, err)
	}

	return ix.IndexText(ctx, filepath.Base(path), domain, string(data))
}

// IndexDir walks a directory tree and indexes every supported file.
// Unsupported files are skipped, not errors; a file that fails to index
// stops the walk.
func (ix *Indexer) IndexDir(ctx context.Context, dir, domain string) (Result, error) {
	start := time.Now()
	var result Result

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			result.FilesSkipped++
			return nil
		}

		added, err := ix.IndexFile(ctx, path, domain)
		if err != nil {
			return err
		}
		result.FilesIndexed++
		result.ChunksAdded += added
		return nil
	})

	result.Duration = time.Since(start)
	if err != nil {
		return result, fmt.Errorf("indexing directory %q: %w", dir, err)
	}
	return result, nil
}
