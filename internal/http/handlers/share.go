package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
	"github.com/yungbote/deckforge-backend/internal/http/response"
	deckmod "github.com/yungbote/deckforge-backend/internal/modules/deck"
	"github.com/yungbote/deckforge-backend/internal/platform/apierr"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

type ShareHandler struct {
	log  *logger.Logger
	deck deckmod.Usecases
}

func NewShareHandler(log *logger.Logger, uc deckmod.Usecases) *ShareHandler {
	return &ShareHandler{log: log.With("handler", "ShareHandler"), deck: uc}
}

// POST /api/share
func (h *ShareHandler) Create(c *gin.Context) {
	var in deck.Presentation
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	link, err := h.deck.Share(c.Request.Context(), in)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, link)
}

// GET /api/share/:token and GET /present/:token
func (h *ShareHandler) Get(c *gin.Context) {
	p, err := h.deck.DecodeShare(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.log.Debug("Share link rejected", "share_token", c.Param("token"), "error", err)
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"presentation": p})
}

// GET /api/share/:token/qr.png?size=256
func (h *ShareHandler) QR(c *gin.Context) {
	size := 0
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondDomainError(c, apierr.BadRequest("invalid_size", fmt.Errorf("size must be an integer: %w", err)))
			return
		}
		size = n
	}
	png, err := h.deck.ShareQR(c.Request.Context(), c.Param("token"), size)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}
