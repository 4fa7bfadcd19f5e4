package app

import (
	httpH "github.com/yungbote/deckforge-backend/internal/http/handlers"
	deckmod "github.com/yungbote/deckforge-backend/internal/modules/deck"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

type Handlers struct {
	Health       *httpH.HealthHandler
	Credentials  *httpH.CredentialsHandler
	Presentation *httpH.PresentationHandler
	Share        *httpH.ShareHandler
	Export       *httpH.ExportHandler
	Chat         *httpH.ChatHandler
}

func wireHandlers(log *logger.Logger, cfg *Config, c Clients, uc deckmod.Usecases) Handlers {
	return Handlers{
		Health:       httpH.NewHealthHandler(cfg.Version),
		Credentials:  httpH.NewCredentialsHandler(log, c.Credentials),
		Presentation: httpH.NewPresentationHandler(log, uc),
		Share:        httpH.NewShareHandler(log, uc),
		Export:       httpH.NewExportHandler(log, uc),
		Chat:         httpH.NewChatHandler(log, uc),
	}
}
