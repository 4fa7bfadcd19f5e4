package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
	"github.com/yungbote/deckforge-backend/internal/http/response"
	deckmod "github.com/yungbote/deckforge-backend/internal/modules/deck"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

const pptxContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

type ExportHandler struct {
	log  *logger.Logger
	deck deckmod.Usecases
}

func NewExportHandler(log *logger.Logger, uc deckmod.Usecases) *ExportHandler {
	return &ExportHandler{log: log.With("handler", "ExportHandler"), deck: uc}
}

type exportReq struct {
	Presentation deck.Presentation `json:"presentation"`
	Title        string            `json:"title"`
}

// POST /api/export
func (h *ExportHandler) Export(c *gin.Context) {
	var req exportReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	f, err := h.deck.Export(c.Request.Context(), req.Presentation, req.Title, func(status string, cur, total int) {
		h.log.Debug("Export progress", "status", status, "current", cur, "total", total)
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	c.Data(http.StatusOK, pptxContentType, f.Data)
}
