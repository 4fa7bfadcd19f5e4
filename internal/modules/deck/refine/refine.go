// Package refine streams a chat conversation about the current deck.
package refine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
	"github.com/yungbote/deckforge-backend/internal/observability"
	"github.com/yungbote/deckforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/deckforge-backend/internal/platform/httpx"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
	"github.com/yungbote/deckforge-backend/internal/platform/openai"
)

const maxMessages = 40

type Streamer interface {
	StreamText(ctx context.Context, system string, turns []openai.Turn, onDelta func(delta string)) (string, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Refiner struct {
	log *logger.Logger
	llm Streamer
}

func New(log *logger.Logger, llm Streamer) *Refiner {
	return &Refiner{log: log.With("service", "DeckRefiner"), llm: llm}
}

// Stream forwards provider deltas to onDelta unchanged and returns the full reply.
func (r *Refiner) Stream(ctx context.Context, p *deck.Presentation, messages []Message, onDelta func(string)) (string, error) {
	turns, err := toTurns(messages)
	if err != nil {
		return "", conversationError(err)
	}
	system, err := systemPrompt(p)
	if err != nil {
		return "", err
	}

	ctx, span := observability.StartSpan(ctx, "refine.Stream")
	defer func() { observability.EndSpan(span, err) }()

	var full string
	full, err = r.llm.StreamText(ctx, system, turns, onDelta)
	if err != nil {
		if errors.Is(err, openai.ErrNoCredential) || httpx.StatusCode(err) == 401 {
			err = &deck.AuthenticationError{Err: err}
		}
		r.log.With(ctxutil.LogFields(ctx)...).Warn("Refinement stream failed", "error", err)
		return full, err
	}
	return full, nil
}

// ValidateConversation reports the same *deck.ValidationError Stream would, without
// calling the model.
func ValidateConversation(messages []Message) error {
	if _, err := toTurns(messages); err != nil {
		return conversationError(err)
	}
	return nil
}

func conversationError(err error) error {
	return &deck.ValidationError{Violations: []deck.Violation{{Field: "messages", Rule: "conversation", Message: err.Error()}}}
}

func toTurns(messages []Message) ([]openai.Turn, error) {
	if len(messages) == 0 {
		return nil, errors.New("at least one message is required")
	}
	if len(messages) > maxMessages {
		messages = messages[len(messages)-maxMessages:]
	}
	out := make([]openai.Turn, 0, len(messages))
	for i, m := range messages {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != "user" && role != "assistant" {
			return nil, fmt.Errorf("message %d: role must be user or assistant", i)
		}
		if strings.TrimSpace(m.Content) == "" {
			return nil, fmt.Errorf("message %d: content is empty", i)
		}
		out = append(out, openai.Turn{Role: role, Content: m.Content})
	}
	if out[len(out)-1].Role != "user" {
		return nil, errors.New("last message must be from the user")
	}
	return out, nil
}

func systemPrompt(p *deck.Presentation) (string, error) {
	var b strings.Builder
	b.WriteString("You help refine a slide presentation. Answer concisely. When suggesting changes, ")
	b.WriteString("refer to slides by number and keep each slide to a title and a short body.\n")
	if p == nil {
		return b.String(), nil
	}
	// Embedded image data adds nothing for the model.
	lite := p.Clone()
	for i := range lite.Slides {
		if lite.Slides[i].ImageURL != nil && strings.HasPrefix(*lite.Slides[i].ImageURL, "data:") {
			v := "[embedded image]"
			lite.Slides[i].ImageURL = &v
		}
	}
	raw, err := json.Marshal(lite)
	if err != nil {
		return "", fmt.Errorf("encode deck: %w", err)
	}
	b.WriteString("\nCurrent presentation (JSON):\n")
	b.Write(raw)
	return b.String(), nil
}
