package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/erikprakoso/rag-axel-backend/internal/rag"
)

// maxQuestionBytes bounds the request body so oversized payloads cannot
// exhaust memory.
const maxQuestionBytes = 64 * 1024

// Asker is the slice of the rag engine the handler needs. Defined here so
// tests can substitute a stub.
type Asker interface {
	Ask(ctx context.Context, req rag.Request) *rag.Response
	AskStream(ctx context.Context, req rag.Request, emit rag.StreamFunc) error
}

type askHandler struct {
	engine Asker
	logger *slog.Logger
}

// askRequest is the POST /api/v1/ask body.
type askRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id,omitempty"`
	Domain         string `json:"domain,omitempty"`
	Stream         bool   `json:"stream,omitempty"`
}

func (h *askHandler) ask(w http.ResponseWriter, r *http.Request) {
	var body askRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", h.logger)
		return
	}
	if strings.TrimSpace(body.Question) == "" {
		writeError(w, http.StatusBadRequest, "missing_question", "question is required", h.logger)
		return
	}

	// An unparseable conversation ID is treated like an unknown one: the
	// engine silently starts a fresh conversation.
	convID := uuid.Nil
	if body.ConversationID != "" {
		if parsed, err := uuid.Parse(body.ConversationID); err == nil {
			convID = parsed
		}
	}

	req := rag.Request{
		ConversationID: convID,
		Question:       body.Question,
		Domain:         body.Domain,
	}

	if body.Stream {
		h.stream(w, r, req)
		return
	}

	resp := h.engine.Ask(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

// stream forwards engine fragments as SSE "fragment" events. The final
// marker fragment terminates the stream.
func (h *askHandler) stream(w http.ResponseWriter, r *http.Request, req rag.Request) {
	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming is not supported", h.logger)
		return
	}

	err = h.engine.AskStream(r.Context(), req, func(f rag.Fragment) error {
		return sse.writeEvent("fragment", f)
	})
	if err != nil {
		// Headers are long gone; all we can do is log.
		h.logger.Debug("stream ended early", "error", err)
	}
}
