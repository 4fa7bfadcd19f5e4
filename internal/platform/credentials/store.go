// Package credentials holds the provider API key for the process. The key is read before
// every external call and only changes through Set or Clear.
package credentials

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/deckforge-backend/internal/platform/kvstore"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

const storageKey = "deck_api_key"

var ErrMissing = errors.New("no API credential configured")

// obfuscation mask; this only keeps the key from sitting in storage as plain text.
var mask = []byte("deckforge/credential")

type persisted struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Store struct {
	log *logger.Logger
	kv  kvstore.Store

	mu     sync.RWMutex
	key    string
	loaded bool
}

func New(log *logger.Logger, kv kvstore.Store) *Store {
	return &Store{log: log.With("service", "CredentialStore"), kv: kv}
}

// APIKey returns the current key or ErrMissing.
func (s *Store) APIKey(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.loaded {
		key := s.key
		s.mu.RUnlock()
		if key == "" {
			return "", ErrMissing
		}
		return key, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		key, err := s.load(ctx)
		if err != nil {
			return "", err
		}
		s.key = key
		s.loaded = true
	}
	if s.key == "" {
		return "", ErrMissing
	}
	return s.key, nil
}

func (s *Store) HasKey(ctx context.Context) bool {
	_, err := s.APIKey(ctx)
	return err == nil
}

func (s *Store) Set(ctx context.Context, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("api key required")
	}
	raw, err := json.Marshal(persisted{Value: obfuscate(apiKey), UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kv != nil {
		if err := s.kv.Set(ctx, storageKey, raw); err != nil {
			return fmt.Errorf("persist credential: %w", err)
		}
	}
	s.key = apiKey
	s.loaded = true
	s.log.Info("API credential updated")
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kv != nil {
		if err := s.kv.Delete(ctx, storageKey); err != nil {
			return fmt.Errorf("clear credential: %w", err)
		}
	}
	s.key = ""
	s.loaded = true
	s.log.Info("API credential cleared")
	return nil
}

func (s *Store) load(ctx context.Context) (string, error) {
	if s.kv == nil {
		return "", nil
	}
	raw, ok, err := s.kv.Get(ctx, storageKey)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	if !ok {
		return "", nil
	}
	var p persisted
	if err := json.Unmarshal(raw, &p); err != nil {
		s.log.Warn("Stored credential unreadable; ignoring", "error", err)
		return "", nil
	}
	key, err := deobfuscate(p.Value)
	if err != nil {
		s.log.Warn("Stored credential unreadable; ignoring", "error", err)
		return "", nil
	}
	return key, nil
}

func obfuscate(plain string) string {
	b := []byte(plain)
	for i := range b {
		b[i] ^= mask[i%len(mask)]
	}
	return base64.StdEncoding.EncodeToString(b)
}

func deobfuscate(enc string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", err
	}
	for i := range b {
		b[i] ^= mask[i%len(mask)]
	}
	return string(b), nil
}
