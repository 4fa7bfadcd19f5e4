package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/deckforge-backend/internal/platform/credentials"
	"github.com/yungbote/deckforge-backend/internal/platform/envutil"
	"github.com/yungbote/deckforge-backend/internal/platform/kvstore"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
	"github.com/yungbote/deckforge-backend/internal/platform/openai"
)

type Clients struct {
	KV          kvstore.Store
	Credentials *credentials.Store
	OpenAI      openai.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg *Config) (Clients, error) {
	kv, err := kvstore.Open(ctx, log, cfg.kvstore())
	if err != nil {
		return Clients{}, fmt.Errorf("init kvstore: %w", err)
	}

	creds := credentials.New(log, kv)
	// A key supplied through the environment is saved like a key entered by the user.
	if key := strings.TrimSpace(envutil.String("OPENAI_API_KEY", "")); key != "" && !creds.HasKey(ctx) {
		if err := creds.Set(ctx, key); err != nil {
			log.Warn("Could not seed API key from environment", "error", err)
		}
	}

	ai, err := openai.NewClient(log, creds, cfg.openAI())
	if err != nil {
		_ = kv.Close()
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	return Clients{KV: kv, Credentials: creds, OpenAI: ai}, nil
}

func (c Clients) Close() {
	if c.KV != nil {
		_ = c.KV.Close()
	}
}
