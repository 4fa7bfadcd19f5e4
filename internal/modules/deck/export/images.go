package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/yungbote/deckforge-backend/internal/platform/httpx"
)

const (
	defaultFetchTimeout  = 15 * time.Second
	defaultMaxImageBytes = 20 << 20
)

// Fetcher downloads remote image references.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}, maxBytes: maxBytes}
}

type fetchError struct {
	status int
}

func (e *fetchError) Error() string       { return fmt.Sprintf("image fetch failed (%d)", e.status) }
func (e *fetchError) HTTPStatusCode() int { return e.status }

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &fetchError{status: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, errors.New("image too large")
	}
	return data, nil
}

var (
	placeholderOnce sync.Once
	placeholderPNG  []byte
)

// placeholder is a 1x1 fully transparent PNG.
func placeholder() []byte {
	placeholderOnce.Do(func() {
		var buf bytes.Buffer
		_ = png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 1, 1)))
		placeholderPNG = buf.Bytes()
	})
	return placeholderPNG
}

// loadImage resolves ref into bytes a PPTX can embed. The bool result is false when the
// placeholder was substituted.
func (e *Exporter) loadImage(ctx context.Context, ref string) ([]byte, string, bool) {
	data, err := e.readRef(ctx, ref)
	if err == nil {
		var mime string
		data, mime, err = normalizeImage(data)
		if err == nil {
			return data, mime, true
		}
	}
	e.log.Warn("Image unavailable, using placeholder", "image", ref, "error", err, "status", httpx.StatusCode(err))
	return placeholder(), "image/png", false
}

func (e *Exporter) readRef(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "data:") {
		return decodeDataURI(ref)
	}
	if e.fetch == nil {
		return nil, errors.New("no fetcher configured")
	}
	return e.fetch.Fetch(ctx, ref)
}

func decodeDataURI(ref string) ([]byte, error) {
	header, payload, ok := strings.Cut(ref, ",")
	if !ok {
		return nil, errors.New("malformed data uri")
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, errors.New("data uri is not base64")
	}
	payload = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, payload)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); err != nil {
			return nil, fmt.Errorf("data uri base64: %w", err)
		}
	}
	return data, nil
}

// normalizeImage passes PNG, JPEG and GIF through and re-encodes any other decodable
// format as PNG.
func normalizeImage(data []byte) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("empty image")
	}
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("image/png"), mt.Is("image/jpeg"), mt.Is("image/gif"):
		return data, mt.String(), nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("unsupported image %s: %w", mt.String(), err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/png", nil
}
