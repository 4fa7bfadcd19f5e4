// Package export renders a deck as a PowerPoint (.pptx) document.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	ppt "github.com/VantageDataChat/GoPPT"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
	"github.com/yungbote/deckforge-backend/internal/observability"
	"github.com/yungbote/deckforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

// 16:9 layout in EMU.
const (
	emuPerInch = 914400

	slideWidth   = int64(10.0 * emuPerInch)
	marginLeft   = int64(0.4 * emuPerInch)
	contentWidth = int64(9.2 * emuPerInch)

	titleTop    = int64(0.3 * emuPerInch)
	titleHeight = int64(0.8 * emuPerInch)

	bodyTop         = int64(1.2 * emuPerInch)
	bodyHeight      = int64(4.0 * emuPerInch)
	bodyWidthNarrow = int64(5.2 * emuPerInch)

	imageLeft   = int64(5.8 * emuPerInch)
	imageTop    = int64(1.3 * emuPerInch)
	imageWidth  = int64(3.8 * emuPerInch)
	imageHeight = int64(2.17 * emuPerInch)

	barHeight = int64(0.08 * emuPerInch)

	fontTitle = 28
	fontBody  = 16
)

const (
	StatusSlide = "slide"
	StatusDone  = "done"
)

// ProgressFunc observes export progress. It is called once per slide and once more with
// StatusDone.
type ProgressFunc func(status string, current, total int)

type File struct {
	Name string
	Data []byte
}

type Exporter struct {
	log   *logger.Logger
	fetch Fetcher
	now   func() time.Time

	mu        sync.Mutex
	lastStamp int64
}

func New(log *logger.Logger, fetch Fetcher) *Exporter {
	return &Exporter{
		log:   log.With("service", "DeckExporter"),
		fetch: fetch,
		now:   time.Now,
	}
}

// ExportToDeckFile renders p. title names the document and the file; p.Title is used when
// it is blank. Only a context cancelled before the call aborts; image problems fall back
// to a placeholder.
func (e *Exporter) ExportToDeckFile(ctx context.Context, p *deck.Presentation, title string, onProgress ProgressFunc) (File, error) {
	if p == nil {
		return File{}, errors.New("presentation required")
	}
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	if strings.TrimSpace(title) == "" {
		title = p.Title
	}

	ctx, span := observability.StartSpan(ctx, "export.ExportToDeckFile", attribute.Int("deck.slides", len(p.Slides)))
	var err error
	defer func() { observability.EndSpan(span, err) }()
	start := time.Now()
	log := e.log.With(ctxutil.LogFields(ctx)...)

	pres := e.build(ctx, p, title, onProgress)

	var data []byte
	data, err = write(pres)
	if err != nil {
		observability.Current().ObserveExport("error", time.Since(start))
		log.Error("PPTX write failed", "error", err)
		return File{}, err
	}
	observability.Current().ObserveExport("ok", time.Since(start))

	f := File{Name: e.Filename(title), Data: data}
	log.Info("Deck exported", "file", f.Name, "slides", len(p.Slides), "bytes", len(data), "duration_ms", time.Since(start).Milliseconds())
	return f, nil
}

// ExportToDir writes the exported file into dir and returns its full path.
func (e *Exporter) ExportToDir(ctx context.Context, dir string, p *deck.Presentation, title string, onProgress ProgressFunc) (string, error) {
	f, err := e.ExportToDeckFile(ctx, p, title, onProgress)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, f.Name)
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

func (e *Exporter) build(ctx context.Context, p *deck.Presentation, title string, onProgress ProgressFunc) *ppt.Presentation {
	pres := ppt.New()
	pres.GetDocumentProperties().Title = title
	pres.GetDocumentProperties().Creator = "deckforge"

	pal := paletteFor(p.Theme)
	total := len(p.Slides)
	for i, s := range p.Slides {
		var slide *ppt.Slide
		if i == 0 {
			slide = pres.GetActiveSlide()
		} else {
			slide = pres.CreateSlide()
		}
		e.renderSlide(ctx, slide, s, pal)
		if onProgress != nil {
			onProgress(StatusSlide, i+1, total)
		}
	}
	if onProgress != nil {
		onProgress(StatusDone, total, total)
	}
	return pres
}

func (e *Exporter) renderSlide(ctx context.Context, slide *ppt.Slide, s deck.Slide, pal palette) {
	slide.SetBackground(solidFill(pal.background))

	bar := slide.CreateAutoShape()
	bar.SetAutoShapeType(ppt.AutoShapeRectangle)
	bar.SetPosition(0, 0).SetSize(slideWidth, barHeight)
	bar.SetFill(solidFill(pal.accent))

	titleShape := slide.CreateRichTextShape()
	titleShape.SetOffsetX(marginLeft).SetOffsetY(titleTop)
	titleShape.SetWidth(contentWidth).SetHeight(titleHeight)
	titleShape.CreateTextRun(s.Title).GetFont().SetSize(fontTitle).SetBold(true).SetColor(ppt.NewColor(pal.heading))

	bodyWidth := contentWidth
	if s.HasImage() {
		bodyWidth = bodyWidthNarrow
	}
	body := slide.CreateRichTextShape()
	body.SetOffsetX(marginLeft).SetOffsetY(bodyTop)
	body.SetWidth(bodyWidth).SetHeight(bodyHeight)
	for i, line := range bodyLines(s.Body) {
		if i > 0 {
			body.CreateParagraph()
		}
		body.CreateTextRun(line).GetFont().SetSize(fontBody).SetColor(ppt.NewColor(pal.body))
	}

	if s.HasImage() {
		data, mime, _ := e.loadImage(ctx, *s.ImageURL)
		img := slide.CreateDrawingShape()
		img.SetImageData(data, mime)
		img.SetOffsetX(imageLeft).SetOffsetY(imageTop)
		img.SetWidth(imageWidth).SetHeight(imageHeight)
	}

	// Notes go to the notes page, never onto the slide face.
	if notes := strings.TrimSpace(s.Notes); notes != "" {
		slide.SetNotes(notes)
	}
}

func write(pres *ppt.Presentation) ([]byte, error) {
	w, err := ppt.NewWriter(pres, ppt.WriterPowerPoint2007)
	if err != nil {
		return nil, fmt.Errorf("create pptx writer: %w", err)
	}
	var buf bytes.Buffer
	if err := w.(*ppt.PPTXWriter).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write pptx: %w", err)
	}
	return buf.Bytes(), nil
}

func bodyLines(body string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		out = []string{body}
	}
	return out
}

// Filename returns "<slug>_<unix ms>.pptx". Stamps strictly increase per exporter.
func (e *Exporter) Filename(title string) string {
	e.mu.Lock()
	ms := e.now().UnixMilli()
	if ms <= e.lastStamp {
		ms = e.lastStamp + 1
	}
	e.lastStamp = ms
	e.mu.Unlock()
	return fmt.Sprintf("%s_%d.pptx", Slug(title), ms)
}

// Slug lowercases title, keeps ASCII letters and digits and collapses every other run
// into a single underscore.
func Slug(title string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(title) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	if b.Len() == 0 {
		return "presentation"
	}
	return b.String()
}
