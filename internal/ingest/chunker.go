// Package ingest turns source documents into embedded knowledge-store
// chunks.
package ingest

import "strings"

// Default chunking geometry. Overlap keeps sentences that straddle a
// chunk boundary retrievable from both sides.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// SplitText slices text into chunks of at most chunkSize runes, each
// overlapping the previous by overlap runes. Boundaries are rune-based so
// multi-byte characters never split. Whitespace-only chunks are dropped.
//
// overlap must be smaller than chunkSize; callers validate that via
// config. Non-positive arguments fall back to the defaults.
func SplitText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
		if overlap >= chunkSize {
			overlap = chunkSize / 5
		}
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := chunkSize - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[start:end])
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
