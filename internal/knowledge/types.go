package knowledge

import "time"

// VectorDimension is the embedding width produced by nomic-embed-text.
// The documents table's vector column must match it.
const VectorDimension = 768

// Document is a chunk of indexed source material.
type Document struct {
	ID        string            // Unique identifier, stable across re-indexing
	Content   string            // Chunk text
	Metadata  map[string]string // Source attribution (source, domain, chunk index)
	CreatedAt time.Time
}

// Passage is a search hit: a document chunk with its cosine similarity
// to the query, in [0, 1].
type Passage struct {
	Document Document
	Score    float32
}

// SearchOption configures Search using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK     int
	domain   string
	minScore float32
	timeout  time.Duration
}

// WithTopK sets the maximum number of passages to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithDomain restricts results to documents whose metadata domain matches.
// An empty domain leaves the search unfiltered.
func WithDomain(domain string) SearchOption {
	return func(c *searchConfig) {
		c.domain = domain
	}
}

// WithMinScore drops passages scoring below the threshold. The filter is
// applied in SQL so discarded rows never cross the wire.
func WithMinScore(score float32) SearchOption {
	return func(c *searchConfig) {
		c.minScore = score
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
