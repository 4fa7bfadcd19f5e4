package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
	"github.com/yungbote/deckforge-backend/internal/http/response"
	deckmod "github.com/yungbote/deckforge-backend/internal/modules/deck"
	"github.com/yungbote/deckforge-backend/internal/platform/apierr"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

type PresentationHandler struct {
	log  *logger.Logger
	deck deckmod.Usecases
}

func NewPresentationHandler(log *logger.Logger, uc deckmod.Usecases) *PresentationHandler {
	return &PresentationHandler{log: log.With("handler", "PresentationHandler"), deck: uc}
}

// POST /api/presentations/generate
func (h *PresentationHandler) Generate(c *gin.Context) {
	var req deck.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	p, err := h.deck.Generate(c.Request.Context(), req)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"presentation": p})
}

// POST /api/presentations/assemble
func (h *PresentationHandler) Assemble(c *gin.Context) {
	var in deck.Presentation
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	p, err := h.deck.Assemble(c.Request.Context(), in)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"presentation": p})
}

type storeResp struct {
	deckmod.StoreResult
	Warning string `json:"warning,omitempty"`
}

// POST /api/presentations
// A failed write still answers 200 with the id and a warning.
func (h *PresentationHandler) Store(c *gin.Context) {
	var in deck.Presentation
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.deck.Store(c.Request.Context(), in)
	if err != nil {
		var pe *deck.PersistenceError
		if !errors.As(err, &pe) {
			response.RespondDomainError(c, err)
			return
		}
		h.log.Warn("Presentation not persisted", "presentation_id", res.ID, "error", err)
		response.RespondOK(c, storeResp{StoreResult: res, Warning: "The presentation could not be saved locally; it will not be available after a restart."})
		return
	}
	response.RespondOK(c, storeResp{StoreResult: res})
}

// GET /api/presentations/:id
func (h *PresentationHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	rec, err := h.deck.Load(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if rec == nil {
		response.RespondDomainError(c, apierr.NotFound("presentation"))
		return
	}
	response.RespondOK(c, gin.H{"id": id, "record": rec})
}
