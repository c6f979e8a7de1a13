package testutil

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// HashEmbedder is a deterministic ai.Embedder for integration tests. It
// maps each input text to a fixed-width unit vector derived from token
// hashes, so identical texts always embed identically and texts sharing
// words land closer together. No model server is required.
type HashEmbedder struct {
	Dim int
}

// NewHashEmbedder returns a HashEmbedder producing vectors of the given
// dimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim}
}

func (e *HashEmbedder) Name() string { return "test-hash-embedder" }

func (e *HashEmbedder) Register(r api.Registry) {}

func (e *HashEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text string
		for _, part := range doc.Content {
			text += part.Text
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{
			Embedding: e.vector(text),
		})
	}
	return resp, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.Dim)

	start := 0
	emit := func(word string) {
		if word == "" {
			return
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		sum := h.Sum32()
		idx := int(sum) % e.Dim
		if idx < 0 {
			idx += e.Dim
		}
		vec[idx] += 1
	}
	for i := 0; i < len(text); i++ {
		if text[i] == ' ' || text[i] == '\n' || text[i] == '\t' {
			emit(text[start:i])
			start = i + 1
		}
	}
	emit(text[start:])

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
