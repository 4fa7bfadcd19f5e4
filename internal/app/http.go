package app

import (
	"net/http"

	httpserver "github.com/yungbote/deckforge-backend/internal/http"
	"github.com/yungbote/deckforge-backend/internal/observability"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg *Config, metrics *observability.Metrics, h Handlers) *http.Server {
	return httpserver.NewServer(httpserver.ServerConfig{
		Addr:              cfg.HTTP.Addr,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
		IdleTimeout:       cfg.HTTP.IdleTimeout.Duration,
	}, httpserver.RouterConfig{
		Log:                 log,
		Metrics:             metrics,
		CORSOrigins:         cfg.HTTP.CORSOrigins,
		MaxBodyBytes:        cfg.HTTP.MaxRequestBytes,
		ServiceName:         serviceName,
		HealthHandler:       h.Health,
		CredentialsHandler:  h.Credentials,
		PresentationHandler: h.Presentation,
		ShareHandler:        h.Share,
		ExportHandler:       h.Export,
		ChatHandler:         h.Chat,
	})
}
