// Package generation asks the language model for a deck and turns its reply into a
// validated presentation.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/schema"
	"github.com/yungbote/deckforge-backend/internal/observability"
	"github.com/yungbote/deckforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/deckforge-backend/internal/platform/httpx"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
	"github.com/yungbote/deckforge-backend/internal/platform/openai"
)

type LLM interface {
	GenerateJSONText(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (string, error)
}

type Client struct {
	log *logger.Logger
	llm LLM
}

func New(log *logger.Logger, llm LLM) *Client {
	return &Client{log: log.With("service", "GenerationClient"), llm: llm}
}

// GenerateDeck makes a single model call. The request is assumed to be validated.
func (c *Client) GenerateDeck(ctx context.Context, req deck.GenerationRequest) (*deck.Presentation, error) {
	ctx, span := observability.StartSpan(ctx, "generation.GenerateDeck",
		attribute.Int("deck.requested_slides", req.NumberOfSlides),
		attribute.String("deck.style", string(req.Style)),
	)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	log := c.log.With(ctxutil.LogFields(ctx)...)

	var text string
	text, err = c.llm.GenerateJSONText(ctx, systemPrompt, userPrompt(req), schemaName, deckSchema())
	if err != nil {
		if errors.Is(err, openai.ErrNoCredential) || httpx.StatusCode(err) == 401 {
			err = &deck.AuthenticationError{Err: err}
			observability.Current().IncGeneration("auth_error")
		} else {
			err = &deck.GenerationError{Stage: deck.StageRequest, Err: err}
			observability.Current().IncGeneration("request_error")
		}
		log.Warn("Deck generation request failed", "error", err)
		return nil, err
	}

	var p *deck.Presentation
	p, err = Parse(text)
	if err != nil {
		var ge *deck.GenerationError
		if errors.As(err, &ge) {
			observability.Current().IncGeneration(string(ge.Stage) + "_error")
		}
		log.Warn("Model output rejected", "error", err)
		return nil, err
	}

	if len(p.Slides) != req.NumberOfSlides {
		log.Warn("Model returned a different slide count", "requested", req.NumberOfSlides, "returned", len(p.Slides))
	}
	observability.Current().IncGeneration("ok")
	log.Info("Deck generated", "title", p.Title, "slides", len(p.Slides))
	return p, nil
}

// Parse converts raw model output into a validated deck. Malformed JSON is a parse-stage
// failure; JSON of the wrong shape or failing validation is a schema-stage failure.
func Parse(text string) (*deck.Presentation, error) {
	text = stripCodeFence(text)
	if text == "" {
		return nil, &deck.GenerationError{Stage: deck.StageParse, Err: errors.New("empty model output")}
	}
	if !json.Valid([]byte(text)) {
		var v any
		perr := json.Unmarshal([]byte(text), &v)
		return nil, &deck.GenerationError{Stage: deck.StageParse, Err: perr}
	}

	var raw deck.Presentation
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return nil, &deck.GenerationError{
				Stage: deck.StageSchema,
				Violations: []deck.Violation{{
					Field:   te.Field,
					Rule:    "type",
					Message: fmt.Sprintf("must be %s, got %s", te.Type.Kind(), te.Value),
				}},
				Err: err,
			}
		}
		return nil, &deck.GenerationError{Stage: deck.StageSchema, Err: err}
	}

	p, err := schema.ValidatePresentation(raw)
	if err != nil {
		var ve *deck.ValidationError
		if errors.As(err, &ve) {
			return nil, &deck.GenerationError{Stage: deck.StageSchema, Violations: ve.Violations, Err: err}
		}
		return nil, &deck.GenerationError{Stage: deck.StageSchema, Err: err}
	}
	return p, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
