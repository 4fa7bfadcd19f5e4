// Package imagegen turns a slide's image description into an image reference.
package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/schema"
	"github.com/yungbote/deckforge-backend/internal/observability"
	"github.com/yungbote/deckforge-backend/internal/platform/httpx"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
	"github.com/yungbote/deckforge-backend/internal/platform/openai"
)

const promptSuffix = "Clean, professional presentation artwork, no text, high quality."

// AugmentPrompt appends the fixed style suffix to a slide description.
func AugmentPrompt(description string) string {
	d := strings.TrimRight(strings.TrimSpace(description), ". ")
	return d + ". " + promptSuffix
}

// Backend is the provider call; *openai.Client satisfies it.
type Backend interface {
	GenerateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResult, error)
}

type Config struct {
	CacheTTL           time.Duration
	RatePerSecond      float64
	Burst              int
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
	// FlightTimeout bounds one shared provider call.
	FlightTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		CacheTTL:           30 * time.Minute,
		RatePerSecond:      2,
		Burst:              4,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
		FlightTimeout:      3 * time.Minute,
	}
}

type Client struct {
	log     *logger.Logger
	backend Backend
	cache   *gocache.Cache
	group   singleflight.Group
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	flightTimeout time.Duration
}

func New(log *logger.Logger, backend Backend, cfg Config) *Client {
	def := DefaultConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = def.BreakerMaxFailures
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.FlightTimeout <= 0 {
		cfg.FlightTimeout = def.FlightTimeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	log = log.With("service", "ImageClient")
	maxFailures := cfg.BreakerMaxFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "image-generation",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		// Credential and cancellation failures say nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || isAuthFailure(err) || errors.Is(err, context.Canceled)
		},
	})

	return &Client{
		log:     log,
		backend: backend,
		cache:   gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		limiter: rate.NewLimiter(limit, cfg.Burst),
		breaker: breaker,

		flightTimeout: cfg.FlightTimeout,
	}
}

// GenerateImage returns an absolute URL or a data:image URI for description.
// Failures are *deck.AuthenticationError for credential problems and
// *deck.ImageGenerationError otherwise.
func (c *Client) GenerateImage(ctx context.Context, description string) (string, error) {
	key := cacheKey(description)
	if key == "" {
		return "", &deck.ImageGenerationError{Description: description, Cause: errors.New("empty description")}
	}
	if v, ok := c.cache.Get(key); ok {
		observability.Current().IncSlideImage("cached")
		return v.(string), nil
	}

	// The flight outlives any single caller; each caller stops waiting on its own context.
	ch := c.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flightTimeout)
		defer cancel()
		ref, err := c.generate(fctx, description)
		if err == nil {
			c.cache.SetDefault(key, ref)
		}
		return ref, err
	})
	select {
	case <-ctx.Done():
		return "", c.classify(description, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", c.classify(description, res.Err)
		}
		observability.Current().IncSlideImage("generated")
		return res.Val.(string), nil
	}
}

func (c *Client) generate(ctx context.Context, description string) (string, error) {
	ctx, span := observability.StartSpan(ctx, "imagegen.GenerateImage", attribute.Int("description.length", len(description)))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	if err = c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	var res interface{}
	res, err = c.breaker.Execute(func() (interface{}, error) {
		return c.backend.GenerateImage(ctx, openai.ImageRequest{Prompt: AugmentPrompt(description)})
	})
	if err != nil {
		return "", err
	}
	var ref string
	ref, err = toImageRef(res.(openai.ImageResult))
	return ref, err
}

func (c *Client) classify(description string, err error) error {
	if isAuthFailure(err) {
		c.log.Warn("Image generation rejected credentials", "error", err)
		return &deck.AuthenticationError{Err: err}
	}
	c.log.Warn("Image generation failed", "error", err)
	return &deck.ImageGenerationError{Description: description, Cause: err}
}

func isAuthFailure(err error) bool {
	return errors.Is(err, openai.ErrNoCredential) || httpx.StatusCode(err) == 401
}

func toImageRef(res openai.ImageResult) (string, error) {
	if b64 := strings.TrimSpace(res.B64JSON); b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil || len(raw) == 0 {
			return "", fmt.Errorf("decode image base64: %w", err)
		}
		mt := mimetype.Detect(raw)
		if !strings.HasPrefix(mt.String(), "image/") {
			return "", fmt.Errorf("provider returned %s, not an image", mt.String())
		}
		return "data:" + mt.String() + ";base64," + b64, nil
	}
	u := strings.TrimSpace(res.URL)
	if !schema.IsImageRef(u) {
		return "", fmt.Errorf("provider returned unusable image url %q", u)
	}
	return u, nil
}

func cacheKey(description string) string {
	return strings.ToLower(strings.Join(strings.Fields(description), " "))
}
