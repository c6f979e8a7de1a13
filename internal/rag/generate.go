package rag

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// ModelGenerator produces answers through a Genkit model. It implements
// Generator.
type ModelGenerator struct {
	g         *genkit.Genkit
	modelName string
}

// NewModelGenerator creates a generator bound to the named model, e.g.
// "ollama/llama3".
func NewModelGenerator(g *genkit.Genkit, modelName string) *ModelGenerator {
	return &ModelGenerator{g: g, modelName: modelName}
}

// Generate returns the complete answer text.
func (m *ModelGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, m.g,
		ai.WithModelName(m.modelName),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return resp.Text(), nil
}

// GenerateStream forwards answer text to onChunk as the model produces it
// and returns the accumulated full text. A callback error aborts the
// stream and is returned to the caller.
func (m *ModelGenerator) GenerateStream(ctx context.Context, system, prompt string, onChunk func(string) error) (string, error) {
	resp, err := genkit.Generate(ctx, m.g,
		ai.WithModelName(m.modelName),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
		ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			if text := chunk.Text(); text != "" {
				return onChunk(text)
			}
			return nil
		}),
	)
	if err != nil {
		return "", fmt.Errorf("generate stream: %w", err)
	}
	return resp.Text(), nil
}
