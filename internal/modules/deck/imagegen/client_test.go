package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
	"github.com/yungbote/deckforge-backend/internal/platform/openai"
)

type fakeBackend struct {
	calls   int32
	prompts []string
	mu      sync.Mutex
	delay   time.Duration
	result  openai.ImageResult
	err     error
}

func (f *fakeBackend) GenerateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResult, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return openai.ImageResult{}, ctx.Err()
		}
	}
	return f.result, f.err
}

func pngBase64(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

type statusErr int

func (e statusErr) Error() string       { return "status" }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestAugmentPrompt(t *testing.T) {
	got := AugmentPrompt("  A red planet at dusk.  ")
	want := "A red planet at dusk. " + promptSuffix
	if got != want {
		t.Fatalf("want=%q got=%q", want, got)
	}
}

func TestGenerateImageURLAndPromptAugmentation(t *testing.T) {
	be := &fakeBackend{result: openai.ImageResult{URL: "https://img.example/mars.png"}}
	c := New(logger.Nop(), be, Config{})
	got, err := c.GenerateImage(context.Background(), "Mars surface")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if got != "https://img.example/mars.png" {
		t.Fatalf("want url got=%q", got)
	}
	if !strings.HasSuffix(be.prompts[0], promptSuffix) || !strings.HasPrefix(be.prompts[0], "Mars surface") {
		t.Fatalf("prompt not augmented: %q", be.prompts[0])
	}
}

func TestGenerateImageBase64BecomesDataURI(t *testing.T) {
	b64 := pngBase64(t)
	c := New(logger.Nop(), &fakeBackend{result: openai.ImageResult{B64JSON: b64}}, Config{})
	got, err := c.GenerateImage(context.Background(), "rocket")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if got != "data:image/png;base64,"+b64 {
		t.Fatalf("unexpected ref prefix: %q", got[:40])
	}
}

func TestGenerateImageCachesByNormalizedDescription(t *testing.T) {
	be := &fakeBackend{result: openai.ImageResult{URL: "https://img.example/a.png"}}
	c := New(logger.Nop(), be, Config{})
	for _, d := range []string{"Red  Planet", "red planet", " RED PLANET "} {
		if _, err := c.GenerateImage(context.Background(), d); err != nil {
			t.Fatalf("GenerateImage(%q): %v", d, err)
		}
	}
	if n := atomic.LoadInt32(&be.calls); n != 1 {
		t.Fatalf("backend calls: want=1 got=%d", n)
	}
}

func TestGenerateImageDeduplicatesConcurrentCalls(t *testing.T) {
	be := &fakeBackend{result: openai.ImageResult{URL: "https://img.example/a.png"}, delay: 50 * time.Millisecond}
	c := New(logger.Nop(), be, Config{})
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GenerateImage(context.Background(), "same scene")
		}()
	}
	wg.Wait()
	if n := atomic.LoadInt32(&be.calls); n != 1 {
		t.Fatalf("backend calls: want=1 got=%d", n)
	}
}

func TestCancelledCallerDoesNotFailSharedCall(t *testing.T) {
	be := &fakeBackend{result: openai.ImageResult{URL: "https://img.example/a.png"}, delay: 150 * time.Millisecond}
	c := New(logger.Nop(), be, Config{})

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.GenerateImage(first, "same scene")
		firstErr <- err
	}()
	time.Sleep(10 * time.Millisecond)

	type result struct {
		ref string
		err error
	}
	second := make(chan result, 1)
	go func() {
		ref, err := c.GenerateImage(context.Background(), "same scene")
		second <- result{ref, err}
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: want context.Canceled got=%v", err)
	}
	got := <-second
	if got.err != nil || got.ref != "https://img.example/a.png" {
		t.Fatalf("other caller: ref=%q err=%v", got.ref, got.err)
	}
	if n := atomic.LoadInt32(&be.calls); n != 1 {
		t.Fatalf("backend calls: want=1 got=%d", n)
	}
}

func TestGenerateImageErrorClassification(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantAuth bool
	}{
		{"unauthorized", statusErr(401), true},
		{"missing key", openai.ErrNoCredential, true},
		{"server error", statusErr(500), false},
		{"network", errors.New("connection reset"), false},
	}
	for _, tc := range cases {
		c := New(logger.Nop(), &fakeBackend{err: tc.err}, Config{})
		_, err := c.GenerateImage(context.Background(), "x")
		var ae *deck.AuthenticationError
		var ie *deck.ImageGenerationError
		if tc.wantAuth && !errors.As(err, &ae) {
			t.Fatalf("%s: want AuthenticationError got=%T %v", tc.name, err, err)
		}
		if !tc.wantAuth && !errors.As(err, &ie) {
			t.Fatalf("%s: want ImageGenerationError got=%T %v", tc.name, err, err)
		}
	}
}

func TestGenerateImageRejectsNonImagePayload(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte("plain text, not an image"))
	c := New(logger.Nop(), &fakeBackend{result: openai.ImageResult{B64JSON: b64}}, Config{})
	_, err := c.GenerateImage(context.Background(), "x")
	var ie *deck.ImageGenerationError
	if !errors.As(err, &ie) {
		t.Fatalf("want ImageGenerationError got=%v", err)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	be := &fakeBackend{err: statusErr(500)}
	c := New(logger.Nop(), be, Config{BreakerMaxFailures: 2, BreakerOpenTimeout: time.Minute})
	for i := 0; i < 4; i++ {
		_, _ = c.GenerateImage(context.Background(), "scene "+string(rune('a'+i)))
	}
	if n := atomic.LoadInt32(&be.calls); n != 2 {
		t.Fatalf("backend calls after breaker opened: want=2 got=%d", n)
	}
}

func TestAuthFailuresDoNotTripBreaker(t *testing.T) {
	be := &fakeBackend{err: statusErr(401)}
	c := New(logger.Nop(), be, Config{BreakerMaxFailures: 1, BreakerOpenTimeout: time.Minute})
	for i := 0; i < 3; i++ {
		_, _ = c.GenerateImage(context.Background(), "scene "+string(rune('a'+i)))
	}
	if n := atomic.LoadInt32(&be.calls); n != 3 {
		t.Fatalf("backend calls: want=3 got=%d", n)
	}
}
