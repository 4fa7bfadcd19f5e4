package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
	"github.com/yungbote/deckforge-backend/internal/http/response"
	deckmod "github.com/yungbote/deckforge-backend/internal/modules/deck"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

type ChatHandler struct {
	log  *logger.Logger
	deck deckmod.Usecases
}

func NewChatHandler(log *logger.Logger, uc deckmod.Usecases) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), deck: uc}
}

type chatReq struct {
	Presentation *deck.Presentation   `json:"presentation"`
	Messages     []deckmod.ChatMessage `json:"messages"`
}

// POST /api/chat
// Streams "delta" events, then a single "done" or "error" event.
func (h *ChatHandler) Stream(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.deck.ValidateConversation(req.Messages); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.RespondError(c, http.StatusInternalServerError, "streaming_unsupported", fmt.Errorf("streaming unsupported"))
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	full, err := h.deck.Refine(c.Request.Context(), req.Presentation, req.Messages, func(delta string) {
		writeSSE(w, "delta", map[string]any{"delta": delta})
		flusher.Flush()
	})
	if err != nil {
		_, body := response.Classify(err)
		writeSSE(w, "error", body)
		flusher.Flush()
		return
	}
	writeSSE(w, "done", map[string]any{"text": full})
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
}
