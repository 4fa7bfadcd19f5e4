package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	deckmod "github.com/yungbote/deckforge-backend/internal/modules/deck"
	"github.com/yungbote/deckforge-backend/internal/observability"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

const serviceName = "deckforge-backend"

type App struct {
	Log     *logger.Logger
	Config  *Config
	Clients Clients
	Deck    deckmod.Usecases

	server       *http.Server
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics := observability.Init(log)
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: cfg.Env,
		Version:     cfg.Version,
	})

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = otelShutdown(ctx)
		log.Sync()
		return nil, err
	}

	uc := wireDeck(log, cfg, clients)
	handlers := wireHandlers(log, cfg, clients, uc)
	srv := wireServer(log, cfg, metrics, handlers)

	return &App{
		Log:          log,
		Config:       cfg,
		Clients:      clients,
		Deck:         uc,
		server:       srv,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves until ctx is done, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "addr", a.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		a.Log.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout.Duration)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout.Duration)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
