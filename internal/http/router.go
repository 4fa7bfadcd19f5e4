package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/deckforge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/deckforge-backend/internal/http/middleware"
	"github.com/yungbote/deckforge-backend/internal/observability"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string
	// MaxBodyBytes caps request bodies; decks with embedded images are large.
	MaxBodyBytes int64
	ServiceName  string

	HealthHandler       *httpH.HealthHandler
	CredentialsHandler  *httpH.CredentialsHandler
	PresentationHandler *httpH.PresentationHandler
	ShareHandler        *httpH.ShareHandler
	ExportHandler       *httpH.ExportHandler
	ChatHandler         *httpH.ChatHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	if cfg.MaxBodyBytes > 0 {
		r.Use(limitBody(cfg.MaxBodyBytes))
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	// Viewer links
	if cfg.ShareHandler != nil {
		r.GET("/present/:token", cfg.ShareHandler.Get)
	}

	api := r.Group("/api")
	{
		if cfg.CredentialsHandler != nil {
			api.GET("/credentials", cfg.CredentialsHandler.Status)
			api.PUT("/credentials", cfg.CredentialsHandler.Set)
			api.DELETE("/credentials", cfg.CredentialsHandler.Clear)
		}

		if cfg.PresentationHandler != nil {
			api.POST("/presentations/generate", cfg.PresentationHandler.Generate)
			api.POST("/presentations/assemble", cfg.PresentationHandler.Assemble)
			api.POST("/presentations", cfg.PresentationHandler.Store)
			api.GET("/presentations/:id", cfg.PresentationHandler.Get)
		}

		if cfg.ShareHandler != nil {
			api.POST("/share", cfg.ShareHandler.Create)
			api.GET("/share/:token", cfg.ShareHandler.Get)
			api.GET("/share/:token/qr.png", cfg.ShareHandler.QR)
		}

		if cfg.ExportHandler != nil {
			api.POST("/export", cfg.ExportHandler.Export)
		}

		if cfg.ChatHandler != nil {
			api.POST("/chat", cfg.ChatHandler.Stream)
		}
	}

	return r
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
