package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/deckforge-backend/internal/modules/deck/assembler"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/imagegen"
	"github.com/yungbote/deckforge-backend/internal/platform/envutil"
	"github.com/yungbote/deckforge-backend/internal/platform/kvstore"
	"github.com/yungbote/deckforge-backend/internal/platform/openai"
)

// Duration accepts "5s" style strings or a bare number of seconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	s := strings.TrimSpace(value.Value)
	if s == "" || s == "null" || s == "~" {
		d.Duration = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		d.Duration = time.Duration(n) * time.Second
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration must look like \"5s\" or an integer number of seconds: %w", err)
	}
	d.Duration = dd
	return nil
}

type HTTPConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	IdleTimeout       Duration `yaml:"idle_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
	MaxRequestBytes   int64    `yaml:"max_request_bytes"`
	CORSOrigins       []string `yaml:"cors_origins"`
}

type OpenAIConfig struct {
	BaseURL             string   `yaml:"base_url"`
	Model               string   `yaml:"model"`
	ImageModel          string   `yaml:"image_model"`
	ImageSize           string   `yaml:"image_size"`
	ImageQuality        string   `yaml:"image_quality"`
	ImageStyle          string   `yaml:"image_style"`
	ImageResponseFormat string   `yaml:"image_response_format"`
	Timeout             Duration `yaml:"timeout"`
	MaxRetries          int      `yaml:"max_retries"`
}

type ImagesConfig struct {
	CacheTTL           Duration `yaml:"cache_ttl"`
	RatePerSecond      float64  `yaml:"rate_per_second"`
	Burst              int      `yaml:"burst"`
	BreakerMaxFailures uint32   `yaml:"breaker_max_failures"`
	BreakerOpenTimeout Duration `yaml:"breaker_open_timeout"`
	FlightTimeout      Duration `yaml:"flight_timeout"`
}

type AssemblerConfig struct {
	MaxConcurrency int      `yaml:"max_concurrency"`
	FallbackPool   []string `yaml:"fallback_pool"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver"`
	QuotaBytes    int64  `yaml:"quota_bytes"`
	SQLitePath    string `yaml:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

type ExportConfig struct {
	Dir           string   `yaml:"dir"`
	FetchTimeout  Duration `yaml:"fetch_timeout"`
	MaxImageBytes int64    `yaml:"max_image_bytes"`
}

type ShareConfig struct {
	PublicBaseURL string `yaml:"public_base_url"`
}

type Config struct {
	Env       string          `yaml:"env"`
	Version   string          `yaml:"version"`
	HTTP      HTTPConfig      `yaml:"http"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Images    ImagesConfig    `yaml:"images"`
	Assembler AssemblerConfig `yaml:"assembler"`
	Storage   StorageConfig   `yaml:"storage"`
	Export    ExportConfig    `yaml:"export"`
	Share     ShareConfig     `yaml:"share"`
}

func defaultConfig() *Config {
	ai := openai.DefaultConfig()
	img := imagegen.DefaultConfig()
	return &Config{
		Env:     "development",
		Version: "dev",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{5 * time.Second},
			IdleTimeout:       Duration{2 * time.Minute},
			ShutdownTimeout:   Duration{15 * time.Second},
			MaxRequestBytes:   32 << 20,
		},
		OpenAI: OpenAIConfig{
			BaseURL:             ai.BaseURL,
			Model:               ai.Model,
			ImageModel:          ai.ImageModel,
			ImageSize:           ai.ImageSize,
			ImageQuality:        ai.ImageQuality,
			ImageStyle:          ai.ImageStyle,
			ImageResponseFormat: ai.ImageResponseFormat,
			Timeout:             Duration{ai.Timeout},
			MaxRetries:          ai.MaxRetries,
		},
		Images: ImagesConfig{
			CacheTTL:           Duration{img.CacheTTL},
			RatePerSecond:      img.RatePerSecond,
			Burst:              img.Burst,
			BreakerMaxFailures: img.BreakerMaxFailures,
			BreakerOpenTimeout: Duration{img.BreakerOpenTimeout},
			FlightTimeout:      Duration{img.FlightTimeout},
		},
		Storage: StorageConfig{
			Driver:     kvstore.DriverMemory,
			QuotaBytes: kvstore.DefaultQuotaBytes,
			SQLitePath: filepath.Join("data", "deckforge.db"),
		},
		Export: ExportConfig{
			Dir:           "exports",
			FetchTimeout:  Duration{15 * time.Second},
			MaxImageBytes: 20 << 20,
		},
		Share: ShareConfig{
			PublicBaseURL: "http://localhost:5173",
		},
	}
}

// LoadConfig applies defaults, then the optional YAML file, then environment overrides.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("DECK_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)
	cfg.Version = envutil.String("DECK_VERSION", cfg.Version)

	if port := envutil.String("PORT", ""); port != "" {
		cfg.HTTP.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	cfg.HTTP.Addr = envutil.String("DECK_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.MaxRequestBytes = envutil.Int64("DECK_HTTP_MAX_REQUEST_BYTES", cfg.HTTP.MaxRequestBytes)
	cfg.HTTP.CORSOrigins = envutil.List("DECK_CORS_ORIGINS", cfg.HTTP.CORSOrigins)

	cfg.OpenAI.BaseURL = envutil.String("OPENAI_BASE_URL", cfg.OpenAI.BaseURL)
	cfg.OpenAI.Model = envutil.String("OPENAI_MODEL", cfg.OpenAI.Model)
	cfg.OpenAI.ImageModel = envutil.String("OPENAI_IMAGE_MODEL", cfg.OpenAI.ImageModel)
	cfg.OpenAI.ImageQuality = envutil.String("OPENAI_IMAGE_QUALITY", cfg.OpenAI.ImageQuality)
	cfg.OpenAI.ImageStyle = envutil.String("OPENAI_IMAGE_STYLE", cfg.OpenAI.ImageStyle)
	cfg.OpenAI.ImageResponseFormat = envutil.String("OPENAI_IMAGE_RESPONSE_FORMAT", cfg.OpenAI.ImageResponseFormat)
	cfg.OpenAI.Timeout.Duration = envutil.Duration("OPENAI_TIMEOUT", cfg.OpenAI.Timeout.Duration)
	cfg.OpenAI.MaxRetries = envutil.Int("OPENAI_MAX_RETRIES", cfg.OpenAI.MaxRetries)

	cfg.Images.CacheTTL.Duration = envutil.Duration("DECK_IMAGE_CACHE_TTL", cfg.Images.CacheTTL.Duration)
	cfg.Assembler.MaxConcurrency = envutil.Int("DECK_ASSEMBLER_MAX_CONCURRENCY", cfg.Assembler.MaxConcurrency)

	cfg.Storage.Driver = envutil.String("DECK_STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.QuotaBytes = envutil.Int64("DECK_STORAGE_QUOTA_BYTES", cfg.Storage.QuotaBytes)
	cfg.Storage.SQLitePath = envutil.String("DECK_SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.RedisAddr = envutil.String("REDIS_ADDR", cfg.Storage.RedisAddr)
	cfg.Storage.RedisPassword = envutil.String("REDIS_PASSWORD", cfg.Storage.RedisPassword)
	cfg.Storage.RedisDB = envutil.Int("REDIS_DB", cfg.Storage.RedisDB)

	cfg.Export.Dir = envutil.String("DECK_EXPORT_DIR", cfg.Export.Dir)
	cfg.Share.PublicBaseURL = envutil.String("DECK_PUBLIC_BASE_URL", cfg.Share.PublicBaseURL)
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "development"
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.MaxRequestBytes <= 0 {
		c.HTTP.MaxRequestBytes = 32 << 20
	}
	if c.HTTP.ShutdownTimeout.Duration <= 0 {
		c.HTTP.ShutdownTimeout = Duration{15 * time.Second}
	}

	c.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenAI.BaseURL), "/")
	if c.OpenAI.BaseURL == "" {
		return errors.New("openai.base_url is required")
	}
	switch c.OpenAI.ImageResponseFormat = strings.ToLower(strings.TrimSpace(c.OpenAI.ImageResponseFormat)); c.OpenAI.ImageResponseFormat {
	case "url", "b64_json":
	case "":
		c.OpenAI.ImageResponseFormat = "b64_json"
	default:
		return fmt.Errorf("invalid openai.image_response_format=%q (want url or b64_json)", c.OpenAI.ImageResponseFormat)
	}
	if c.OpenAI.MaxRetries < 0 {
		return errors.New("openai.max_retries must be >= 0")
	}
	if c.Assembler.MaxConcurrency < 0 {
		return errors.New("assembler.max_concurrency must be >= 0")
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case "", kvstore.DriverMemory:
		c.Storage.Driver = kvstore.DriverMemory
	case kvstore.DriverSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			return errors.New("storage.sqlite_path is required for the sqlite driver")
		}
	case kvstore.DriverRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return errors.New("storage.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("invalid storage.driver=%q", c.Storage.Driver)
	}

	c.Share.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Share.PublicBaseURL), "/")
	return nil
}

func (c *Config) openAI() openai.Config {
	return openai.Config{
		BaseURL:             c.OpenAI.BaseURL,
		Model:               c.OpenAI.Model,
		ImageModel:          c.OpenAI.ImageModel,
		ImageSize:           c.OpenAI.ImageSize,
		ImageQuality:        c.OpenAI.ImageQuality,
		ImageStyle:          c.OpenAI.ImageStyle,
		ImageResponseFormat: c.OpenAI.ImageResponseFormat,
		Timeout:             c.OpenAI.Timeout.Duration,
		MaxRetries:          c.OpenAI.MaxRetries,
	}
}

func (c *Config) images() imagegen.Config {
	return imagegen.Config{
		CacheTTL:           c.Images.CacheTTL.Duration,
		RatePerSecond:      c.Images.RatePerSecond,
		Burst:              c.Images.Burst,
		BreakerMaxFailures: c.Images.BreakerMaxFailures,
		BreakerOpenTimeout: c.Images.BreakerOpenTimeout.Duration,
		FlightTimeout:      c.Images.FlightTimeout.Duration,
	}
}

func (c *Config) assembler() assembler.Config {
	return assembler.Config{MaxConcurrency: c.Assembler.MaxConcurrency, FallbackPool: c.Assembler.FallbackPool}
}

func (c *Config) kvstore() kvstore.Config {
	return kvstore.Config{
		Driver:        c.Storage.Driver,
		QuotaBytes:    c.Storage.QuotaBytes,
		SQLitePath:    c.Storage.SQLitePath,
		RedisAddr:     c.Storage.RedisAddr,
		RedisPassword: c.Storage.RedisPassword,
		RedisDB:       c.Storage.RedisDB,
		RedisPrefix:   c.Storage.RedisPrefix,
	}
}
