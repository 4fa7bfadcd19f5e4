package generation

import (
	"fmt"
	"strings"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
)

const schemaName = "presentation_deck"

const systemPrompt = `You are a presentation designer. Produce a complete slide deck as JSON.

Return exactly one JSON object with this shape:
{
  "title": string,
  "slides": [
    {
      "title": string,
      "body": string,
      "notes": string | null,
      "imageUrl": null,
      "ai_image_description": string
    }
  ],
  "theme": {
    "primary": "#RRGGBB", "secondary": "#RRGGBB", "background": "#RRGGBB", "accent": "#RRGGBB",
    "text": { "heading": "#RRGGBB", "body": "#RRGGBB", "muted": "#RRGGBB" }
  } | null
}

Rules:
- Every slide has a short title and a body of concise points separated by newlines.
- Every slide has an ai_image_description: one sentence describing a photograph or illustration that fits the slide. Never ask for text inside the image.
- notes are what the presenter says aloud; pace them to the requested duration.
- Leave imageUrl null.
- Colors are six-digit hex values.`

func userPrompt(req deck.GenerationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", strings.TrimSpace(req.Topic))
	fmt.Fprintf(&b, "Description: %s\n", strings.TrimSpace(req.Description))
	fmt.Fprintf(&b, "Number of slides: %d\n", req.NumberOfSlides)
	fmt.Fprintf(&b, "Presentation length: %d minutes\n", req.Duration)
	fmt.Fprintf(&b, "Style: %s\n", req.Style)
	fmt.Fprintf(&b, "\nCreate exactly %d slides.", req.NumberOfSlides)
	return b.String()
}

func nullable(t string) []any { return []any{t, "null"} }

func colorProp() map[string]any {
	return map[string]any{"type": "string", "pattern": "^#[0-9a-fA-F]{6}$"}
}

// deckSchema is the strict structured-output schema. Strict mode requires every property
// to be listed as required, so optional fields are nullable instead.
func deckSchema() map[string]any {
	slide := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"title":                map[string]any{"type": "string"},
			"body":                 map[string]any{"type": "string"},
			"notes":                map[string]any{"type": nullable("string")},
			"imageUrl":             map[string]any{"type": nullable("string")},
			"ai_image_description": map[string]any{"type": "string"},
		},
		"required": []string{"title", "body", "notes", "imageUrl", "ai_image_description"},
	}
	text := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"heading": colorProp(),
			"body":    colorProp(),
			"muted":   colorProp(),
		},
		"required": []string{"heading", "body", "muted"},
	}
	theme := map[string]any{
		"type":                 nullable("object"),
		"additionalProperties": false,
		"properties": map[string]any{
			"primary":    colorProp(),
			"secondary":  colorProp(),
			"background": colorProp(),
			"accent":     colorProp(),
			"text":       text,
		},
		"required": []string{"primary", "secondary", "background", "accent", "text"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"title":  map[string]any{"type": "string"},
			"slides": map[string]any{"type": "array", "items": slide},
			"theme":  theme,
		},
		"required": []string{"title", "slides", "theme"},
	}
}
