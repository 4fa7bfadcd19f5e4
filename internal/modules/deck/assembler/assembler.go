// Package assembler attaches an image to every slide of a generated deck.
package assembler

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
	"github.com/yungbote/deckforge-backend/internal/observability"
	"github.com/yungbote/deckforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

type ImageGenerator interface {
	GenerateImage(ctx context.Context, description string) (string, error)
}

type Config struct {
	// MaxConcurrency caps in-flight image calls; 0 means one goroutine per slide.
	MaxConcurrency int
	FallbackPool   []string
}

type Assembler struct {
	log       *logger.Logger
	images    ImageGenerator
	fallbacks Fallbacks
	limit     int
}

func New(log *logger.Logger, images ImageGenerator, cfg Config) *Assembler {
	return &Assembler{
		log:       log.With("service", "DeckAssembler"),
		images:    images,
		fallbacks: NewFallbacks(cfg.FallbackPool),
		limit:     cfg.MaxConcurrency,
	}
}

// AssembleDeck returns a copy of p where every slide has an image. Slides are resolved
// concurrently; output order matches input order. An authentication failure aborts the
// whole deck and cancels outstanding image calls. p is not modified.
func (a *Assembler) AssembleDeck(ctx context.Context, p *deck.Presentation) (*deck.Presentation, error) {
	if p == nil {
		return nil, errors.New("presentation required")
	}
	ctx, span := observability.StartSpan(ctx, "assembler.AssembleDeck", attribute.Int("deck.slides", len(p.Slides)))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	log := a.log.With(ctxutil.LogFields(ctx)...)
	start := time.Now()

	out := p.Clone()
	resolved := make([]deck.Slide, len(p.Slides))

	g, gctx := errgroup.WithContext(ctx)
	if a.limit > 0 {
		g.SetLimit(a.limit)
	}
	for i := range p.Slides {
		i, s := i, p.Slides[i]
		g.Go(func() error {
			slide, err := a.resolveSlide(gctx, i, s)
			if err != nil {
				return err
			}
			resolved[i] = slide
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		log.Warn("Deck assembly aborted", "error", err)
		return nil, err
	}

	out.Slides = resolved
	log.Info("Deck assembled", "slides", len(resolved), "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (a *Assembler) resolveSlide(ctx context.Context, i int, s deck.Slide) (deck.Slide, error) {
	desc := strings.TrimSpace(s.AIImageDescription)
	metrics := observability.Current()

	switch {
	case desc != "":
		ref, err := a.images.GenerateImage(ctx, desc)
		if err == nil {
			return deck.ApplyPatch(s, deck.WithImage(ref)), nil
		}
		if deck.IsAuthentication(err) {
			metrics.IncSlideImage("auth_error")
			return deck.Slide{}, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return deck.Slide{}, ctxErr
		}
		a.log.Debug("Using fallback image", "slide", i, "error", err)
		metrics.IncSlideImage("fallback")
		return deck.ApplyPatch(s, deck.WithImage(a.fallbacks.ForDescription(desc))), nil

	case s.HasImage():
		metrics.IncSlideImage("kept")
		return s.Clone(), nil

	default:
		metrics.IncSlideImage("fallback")
		return deck.ApplyPatch(s, deck.WithImage(a.fallbacks.ForIndex(i))), nil
	}
}
