// Package storage keeps presentation records in the local key-value backend.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
	"github.com/yungbote/deckforge-backend/internal/observability"
	"github.com/yungbote/deckforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/deckforge-backend/internal/platform/kvstore"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

const (
	keyPrefix = "presentation_"

	LimitedStorageNotice = "Storage is nearly full: the presentation was saved in limited storage mode without embedded images."
)

type StoreResult struct {
	ID       string `json:"id"`
	Degraded bool   `json:"degraded"`
	Notice   string `json:"notice,omitempty"`
}

type Storage struct {
	log *logger.Logger
	kv  kvstore.Store
	now func() time.Time
}

func New(log *logger.Logger, kv kvstore.Store) *Storage {
	return &Storage{
		log: log.With("service", "PresentationStorage"),
		kv:  kv,
		now: time.Now,
	}
}

// Key is the backend key for a record id.
func Key(id string) string {
	return keyPrefix + strings.TrimPrefix(id, keyPrefix)
}

// Store writes p under a fresh id. A failed write is retried once with embedded image
// data removed; that result is flagged Degraded. When both writes fail the returned
// result still carries the id and the error is a *deck.PersistenceError.
func (s *Storage) Store(ctx context.Context, p *deck.Presentation) (StoreResult, error) {
	if p == nil {
		return StoreResult{}, errors.New("presentation required")
	}
	id := uuid.New().String()
	res := StoreResult{ID: id}

	ctx, span := observability.StartSpan(ctx, "storage.Store", attribute.String("presentation.id", id))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	log := s.log.With(ctxutil.LogFields(ctx)...).With("presentation_id", id)
	metrics := observability.Current()

	rec := deck.StoredPresentationRecord{Timestamp: s.now().UTC(), Title: p.Title, Slides: p.Clone().Slides}
	if err = s.write(ctx, id, rec); err == nil {
		metrics.IncStoreWrite("full")
		log.Debug("Presentation stored", "slides", len(rec.Slides))
		return res, nil
	}
	log.Warn("Full write failed, retrying without embedded images", "error", err)

	rec.Slides = stripEmbedded(rec.Slides)
	if err = s.write(ctx, id, rec); err == nil {
		metrics.IncStoreWrite("reduced")
		res.Degraded = true
		res.Notice = LimitedStorageNotice
		return res, nil
	}

	metrics.IncStoreWrite("failed")
	log.Error("Reduced write failed", "error", err)
	err = &deck.PersistenceError{Op: "store", Err: err}
	return res, err
}

// Load returns nil, nil for unknown ids.
func (s *Storage) Load(ctx context.Context, id string) (*deck.StoredPresentationRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	raw, ok, err := s.kv.Get(ctx, Key(id))
	if err != nil {
		return nil, &deck.PersistenceError{Op: "load", Err: err}
	}
	if !ok {
		return nil, nil
	}
	var rec deck.StoredPresentationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, &deck.PersistenceError{Op: "load", Err: fmt.Errorf("decode record: %w", err)}
	}
	return &rec, nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	if err := s.kv.Delete(ctx, Key(id)); err != nil {
		return &deck.PersistenceError{Op: "delete", Err: err}
	}
	return nil
}

func (s *Storage) write(ctx context.Context, id string, rec deck.StoredPresentationRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return s.kv.Set(ctx, Key(id), raw)
}

// stripEmbedded nulls data: image references and keeps remote URLs.
func stripEmbedded(slides []deck.Slide) []deck.Slide {
	out := make([]deck.Slide, len(slides))
	for i, sl := range slides {
		if sl.ImageURL != nil && strings.HasPrefix(*sl.ImageURL, "data:") {
			out[i] = deck.ApplyPatch(sl, deck.SlidePatch{ClearImageURL: true})
			continue
		}
		out[i] = sl.Clone()
	}
	return out
}
