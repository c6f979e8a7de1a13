package rag

import (
	"fmt"
	"strings"

	"github.com/erikprakoso/rag-axel-backend/internal/conversation"
	"github.com/erikprakoso/rag-axel-backend/internal/knowledge"
)

// systemPersona instructs the model to answer briefly and stay on topic.
// It is fixed; per-request material goes into the prompt body instead.
const systemPersona = `You are AXEL, an assistant for API platform documentation.
Answer using only the provided context passages. Keep answers short and
to the point. If the context does not cover the question, say so instead
of guessing. Stay on the topic of the documentation.`

// buildPrompt assembles the generation prompt from the retrieved passages,
// the recent conversation turns, and the question. The question appears
// verbatim: retrieval may use an enhanced rewrite, but the model must see
// exactly what the user asked.
//
// withScores controls whether each passage label carries its similarity
// score. Buffered responses include scores; streaming omits them to keep
// the prompt identical across retries.
func buildPrompt(question string, passages []knowledge.Passage, history []conversation.Message, withScores bool) string {
	var b strings.Builder

	b.WriteString("Context:\n")
	for i, p := range passages {
		if withScores {
			fmt.Fprintf(&b, "[%d] (score %.2f) %s\n", i+1, p.Score, p.Document.Content)
		} else {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, p.Document.Content)
		}
	}

	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
