package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// QuotaBytes caps a single value; redis has no cheap total-size accounting per prefix.
	QuotaBytes int64
}

type Redis struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	quota  int64
}

func NewRedis(ctx context.Context, log *logger.Logger, opts RedisOptions) (*Redis, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = "deckforge:"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{
		log:    log.With("service", "RedisKVStore"),
		rdb:    rdb,
		prefix: prefix,
		quota:  opts.QuotaBytes,
	}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if r.quota > 0 && entrySize(key, value) > r.quota {
		return ErrQuotaExceeded
	}
	err := r.rdb.Set(ctx, r.prefix+key, value, 0).Err()
	if err != nil && strings.Contains(strings.ToUpper(err.Error()), "OOM") {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.prefix+key).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
