package kvstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

type kvEntry struct {
	Name      string         `gorm:"primaryKey;type:text"`
	Value     datatypes.JSON `gorm:"not null"`
	Size      int64          `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (kvEntry) TableName() string { return "kv_entries" }

// SQLite persists entries in a single table; the quota applies to the sum of entry sizes.
type SQLite struct {
	log   *logger.Logger
	db    *gorm.DB
	quota int64
}

func NewSQLite(log *logger.Logger, path string, quotaBytes int64) (*SQLite, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "deckforge.db")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		// SQLite allows one writer; a single connection keeps quota checks serialized.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("sqlite automigrate: %w", err)
	}
	log.Info("SQLite kvstore ready", "path", path, "quota_bytes", quotaBytes)
	return &SQLite{log: log.With("service", "SQLiteKVStore"), db: db, quota: quotaBytes}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e kvEntry
	err := s.db.WithContext(ctx).Where("name = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(e.Value), true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	size := entrySize(key, value)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.quota > 0 {
			var others int64
			if err := tx.Model(&kvEntry{}).
				Where("name <> ?", key).
				Select("COALESCE(SUM(size), 0)").
				Scan(&others).Error; err != nil {
				return err
			}
			if others+size > s.quota {
				return ErrQuotaExceeded
			}
		}
		e := kvEntry{Name: key, Value: datatypes.JSON(value), Size: size, UpdatedAt: time.Now().UTC()}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "size", "updated_at"}),
		}).Create(&e).Error
	})
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("name = ?", key).Delete(&kvEntry{}).Error
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
