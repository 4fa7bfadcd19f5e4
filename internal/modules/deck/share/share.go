// Package share turns a deck into a self-contained URL token and back.
package share

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/schema"
	"github.com/yungbote/deckforge-backend/internal/observability"
)

const presentPath = "/present/"

// EncodeForShare serializes p as base64url (no padding) JSON. Embedded image data is kept,
// so tokens for decks with data: images can be large.
func EncodeForShare(p *deck.Presentation) (string, error) {
	if p == nil {
		return "", errors.New("presentation required")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		observability.Current().IncShare("encode", "error")
		return "", fmt.Errorf("encode share token: %w", err)
	}
	observability.Current().IncShare("encode", "ok")
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeFromShare is the inverse of EncodeForShare. Every failure, including a token that
// decodes to an invalid deck, is reported as *deck.DecodeError.
func DecodeFromShare(token string) (*deck.Presentation, error) {
	p, err := decode(token)
	if err != nil {
		observability.Current().IncShare("decode", "invalid")
		return nil, &deck.DecodeError{Err: err}
	}
	observability.Current().IncShare("decode", "ok")
	return p, nil
}

func decode(token string) (*deck.Presentation, error) {
	token = strings.TrimRight(strings.TrimSpace(token), "=")
	if token == "" {
		return nil, errors.New("empty token")
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		// Tokens minted with the standard alphabet still decode.
		if raw, err = base64.RawStdEncoding.DecodeString(token); err != nil {
			return nil, fmt.Errorf("base64: %w", err)
		}
	}
	var p deck.Presentation
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return schema.ValidatePresentation(p)
}

// ShareURL builds the viewer link for token under base.
func ShareURL(base, token string) string {
	return strings.TrimRight(base, "/") + presentPath + token
}
