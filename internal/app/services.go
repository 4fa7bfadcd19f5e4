package app

import (
	deckmod "github.com/yungbote/deckforge-backend/internal/modules/deck"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/assembler"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/export"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/generation"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/imagegen"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/refine"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/storage"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

func wireDeck(log *logger.Logger, cfg *Config, c Clients) deckmod.Usecases {
	log.Info("Wiring deck pipeline...")
	images := imagegen.New(log, c.OpenAI, cfg.images())
	return deckmod.New(deckmod.UsecasesDeps{
		Log:           log,
		Generator:     generation.New(log, c.OpenAI),
		Assembler:     assembler.New(log, images, cfg.assembler()),
		Storage:       storage.New(log, c.KV),
		Exporter:      export.New(log, export.NewHTTPFetcher(cfg.Export.FetchTimeout.Duration, cfg.Export.MaxImageBytes)),
		Refiner:       refine.New(log, c.OpenAI),
		PublicBaseURL: cfg.Share.PublicBaseURL,
	})
}
