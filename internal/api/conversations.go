package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/erikprakoso/rag-axel-backend/internal/conversation"
)

type conversationsHandler struct {
	store  *conversation.Store
	logger *slog.Logger
}

type conversationResponse struct {
	ConversationID string                 `json:"conversation_id"`
	Messages       []conversation.Message `json:"messages"`
}

// get returns a conversation's history, most recent messages last.
func (h *conversationsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "conversation id must be a UUID", h.logger)
		return
	}
	if !h.store.Exists(id) {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, conversationResponse{
		ConversationID: id.String(),
		Messages:       h.store.History(id, 0),
	})
}

// delete removes a conversation. 204 on success, 404 for unknown IDs.
func (h *conversationsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "conversation id must be a UUID", h.logger)
		return
	}
	if !h.store.Delete(id) {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
