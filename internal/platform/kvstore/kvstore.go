// Package kvstore is the local key-value backend behind presentation storage and the
// credential store. Values are JSON documents; writes are atomic per key and
// same-key writes are last-write-wins.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

var ErrQuotaExceeded = errors.New("kvstore: quota exceeded")

type Store interface {
	// Get returns ok=false when key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// DefaultQuotaBytes mirrors the ~5 MiB budget browsers give local storage.
const DefaultQuotaBytes int64 = 5 << 20

type Config struct {
	Driver     string
	QuotaBytes int64

	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open builds the configured backend.
func Open(ctx context.Context, log *logger.Logger, cfg Config) (Store, error) {
	if cfg.QuotaBytes <= 0 {
		cfg.QuotaBytes = DefaultQuotaBytes
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverMemory:
		return NewMemory(cfg.QuotaBytes), nil
	case DriverSQLite:
		return NewSQLite(log, cfg.SQLitePath, cfg.QuotaBytes)
	case DriverRedis:
		return NewRedis(ctx, log, RedisOptions{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			Prefix:     cfg.RedisPrefix,
			QuotaBytes: cfg.QuotaBytes,
		})
	default:
		return nil, fmt.Errorf("unknown kvstore driver %q", cfg.Driver)
	}
}
