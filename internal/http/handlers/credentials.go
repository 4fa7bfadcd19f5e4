package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/deckforge-backend/internal/http/response"
	"github.com/yungbote/deckforge-backend/internal/platform/credentials"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

type CredentialsHandler struct {
	log   *logger.Logger
	store *credentials.Store
}

func NewCredentialsHandler(log *logger.Logger, store *credentials.Store) *CredentialsHandler {
	return &CredentialsHandler{log: log.With("handler", "CredentialsHandler"), store: store}
}

type setCredentialReq struct {
	APIKey string `json:"apiKey"`
}

// GET /api/credentials
func (h *CredentialsHandler) Status(c *gin.Context) {
	response.RespondOK(c, gin.H{"configured": h.store.HasKey(c.Request.Context())})
}

// PUT /api/credentials
func (h *CredentialsHandler) Set(c *gin.Context) {
	var req setCredentialReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.store.Set(c.Request.Context(), req.APIKey); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_credential", err)
		return
	}
	response.RespondOK(c, gin.H{"configured": true})
}

// DELETE /api/credentials
func (h *CredentialsHandler) Clear(c *gin.Context) {
	if err := h.store.Clear(c.Request.Context()); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "clear_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"configured": false})
}
