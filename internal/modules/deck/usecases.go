// Package deck wires the presentation pipeline together for the HTTP and CLI surfaces.
package deck

import (
	"context"
	"time"

	domain "github.com/yungbote/deckforge-backend/internal/domain/deck"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/assembler"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/export"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/generation"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/refine"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/schema"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/share"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/storage"
	"github.com/yungbote/deckforge-backend/internal/observability"
	"github.com/yungbote/deckforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

type UsecasesDeps struct {
	Log *logger.Logger

	Generator *generation.Client
	Assembler *assembler.Assembler
	Storage   *storage.Storage
	Exporter  *export.Exporter
	Refiner   *refine.Refiner

	// PublicBaseURL prefixes share links.
	PublicBaseURL string
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type (
	StoreResult  = storage.StoreResult
	ExportFile   = export.File
	ProgressFunc = export.ProgressFunc
	ChatMessage  = refine.Message
)

type ShareLink struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// Generate validates in, asks the model for a deck and attaches images to every slide.
// Validation and schema failures are returned as is and never retried.
func (u Usecases) Generate(ctx context.Context, in domain.GenerationRequest) (*domain.Presentation, error) {
	start := time.Now()
	log := u.deps.Log.With(ctxutil.LogFields(ctx)...)

	req, err := schema.ValidateRequest(in)
	if err != nil {
		observability.Current().IncGeneration("invalid_request")
		return nil, err
	}
	raw, err := u.deps.Generator.GenerateDeck(ctx, req)
	if err != nil {
		return nil, err
	}
	out, err := u.deps.Assembler.AssembleDeck(ctx, raw)
	if err != nil {
		return nil, err
	}
	log.Info("Presentation generated", "topic", req.Topic, "slides", len(out.Slides), "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

// Assemble validates a caller-supplied deck and attaches images to it.
func (u Usecases) Assemble(ctx context.Context, in domain.Presentation) (*domain.Presentation, error) {
	p, err := schema.ValidatePresentation(in)
	if err != nil {
		return nil, err
	}
	return u.deps.Assembler.AssembleDeck(ctx, p)
}

func (u Usecases) Share(ctx context.Context, in domain.Presentation) (ShareLink, error) {
	p, err := schema.ValidatePresentation(in)
	if err != nil {
		return ShareLink{}, err
	}
	token, err := share.EncodeForShare(p)
	if err != nil {
		return ShareLink{}, err
	}
	return ShareLink{Token: token, URL: share.ShareURL(u.deps.PublicBaseURL, token)}, nil
}

func (u Usecases) DecodeShare(ctx context.Context, token string) (*domain.Presentation, error) {
	return share.DecodeFromShare(token)
}

// ShareQR renders the share link for token as a PNG QR code.
func (u Usecases) ShareQR(ctx context.Context, token string, size int) ([]byte, error) {
	if _, err := share.DecodeFromShare(token); err != nil {
		return nil, err
	}
	return share.QRCode(share.ShareURL(u.deps.PublicBaseURL, token), size)
}

// Store returns a usable result even when err is a *PersistenceError.
func (u Usecases) Store(ctx context.Context, in domain.Presentation) (StoreResult, error) {
	p, err := schema.ValidatePresentation(in)
	if err != nil {
		return StoreResult{}, err
	}
	return u.deps.Storage.Store(ctx, p)
}

func (u Usecases) Load(ctx context.Context, id string) (*domain.StoredPresentationRecord, error) {
	return u.deps.Storage.Load(ctx, id)
}

func (u Usecases) Export(ctx context.Context, in domain.Presentation, title string, onProgress ProgressFunc) (ExportFile, error) {
	p, err := schema.ValidatePresentation(in)
	if err != nil {
		return ExportFile{}, err
	}
	return u.deps.Exporter.ExportToDeckFile(ctx, p, title, onProgress)
}

func (u Usecases) ExportToDir(ctx context.Context, dir string, in domain.Presentation, title string, onProgress ProgressFunc) (string, error) {
	p, err := schema.ValidatePresentation(in)
	if err != nil {
		return "", err
	}
	return u.deps.Exporter.ExportToDir(ctx, dir, p, title, onProgress)
}

// ValidateConversation checks a chat transcript before a stream is opened.
func (u Usecases) ValidateConversation(messages []ChatMessage) error {
	return refine.ValidateConversation(messages)
}

func (u Usecases) Refine(ctx context.Context, current *domain.Presentation, messages []ChatMessage, onDelta func(string)) (string, error) {
	return u.deps.Refiner.Stream(ctx, current, messages, onDelta)
}
