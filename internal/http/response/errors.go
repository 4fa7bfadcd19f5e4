package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
	"github.com/yungbote/deckforge-backend/internal/platform/apierr"
)

// RespondDomainError maps pipeline errors onto the JSON error envelope.
func RespondDomainError(c *gin.Context, err error) {
	status, body := Classify(err)
	c.JSON(status, ErrorEnvelope{Error: body})
}

func Classify(err error) (int, APIError) {
	var (
		ve  *deck.ValidationError
		ae  *deck.AuthenticationError
		ge  *deck.GenerationError
		de  *deck.DecodeError
		pe  *deck.PersistenceError
		api *apierr.Error
	)
	switch {
	case err == nil:
		return http.StatusInternalServerError, APIError{Message: "unknown error", Code: "internal"}
	case errors.As(err, &ae):
		return http.StatusUnauthorized, APIError{Message: "a valid API key is required", Code: "authentication_required"}
	case errors.As(err, &ge):
		return http.StatusBadGateway, APIError{Message: ge.Error(), Code: "generation_failed", Stage: string(ge.Stage), Violations: ge.Violations}
	case errors.As(err, &de):
		return http.StatusBadRequest, APIError{Message: "invalid or expired link", Code: "invalid_share_link"}
	// Generation and decode errors wrap a ValidationError, so they are matched first.
	case errors.As(err, &ve):
		return http.StatusBadRequest, APIError{Message: "validation failed", Code: "validation_failed", Violations: ve.Violations}
	case errors.As(err, &pe):
		return http.StatusInternalServerError, APIError{Message: pe.Error(), Code: "persistence_failed"}
	case errors.As(err, &api):
		return api.Status, APIError{Message: api.Error(), Code: api.Code}
	case errors.Is(err, context.Canceled):
		return 499, APIError{Message: "request cancelled", Code: "cancelled"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, APIError{Message: "request timed out", Code: "timeout"}
	default:
		return http.StatusInternalServerError, APIError{Message: err.Error(), Code: "internal"}
	}
}
