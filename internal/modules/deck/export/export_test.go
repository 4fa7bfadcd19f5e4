package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ppt "github.com/VantageDataChat/GoPPT"
	"golang.org/x/image/bmp"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

type fetchFunc func(ctx context.Context, url string) ([]byte, error)

func (f fetchFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

func strPtr(s string) *string { return &s }

func pngDataURI(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func slideTexts(s *ppt.Slide) []string {
	var out []string
	for _, shape := range s.GetShapes() {
		rts, ok := shape.(*ppt.RichTextShape)
		if !ok {
			continue
		}
		for _, para := range rts.GetParagraphs() {
			for _, el := range para.GetElements() {
				if run, ok := el.(*ppt.TextRun); ok {
					out = append(out, run.GetText())
				}
			}
		}
	}
	return out
}

func drawingCount(s *ppt.Slide) int {
	n := 0
	for _, shape := range s.GetShapes() {
		if _, ok := shape.(*ppt.DrawingShape); ok {
			n++
		}
	}
	return n
}

func textShapeCount(s *ppt.Slide) int {
	n := 0
	for _, shape := range s.GetShapes() {
		if _, ok := shape.(*ppt.RichTextShape); ok {
			n++
		}
	}
	return n
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func TestBuildTwoSlideDeck(t *testing.T) {
	p := &deck.Presentation{Title: "Two", Slides: []deck.Slide{
		{Title: "With image", Body: "Body one", Notes: "Speak slowly", ImageURL: strPtr(pngDataURI(t))},
		{Title: "Plain", Body: "Body two"},
	}}
	var progress []string
	e := New(logger.Nop(), nil)
	pres := e.build(context.Background(), p, "Two", func(status string, cur, total int) {
		progress = append(progress, status)
		if total != 2 {
			t.Fatalf("total: want=2 got=%d", total)
		}
	})

	slides := pres.GetAllSlides()
	if len(slides) != 2 {
		t.Fatalf("slides: want=2 got=%d", len(slides))
	}
	if n := drawingCount(slides[0]) + drawingCount(slides[1]); n != 1 {
		t.Fatalf("images: want=1 got=%d", n)
	}
	first := slideTexts(slides[0])
	for _, want := range []string{"With image", "Body one"} {
		if !contains(first, want) {
			t.Fatalf("slide 1 missing %q: %v", want, first)
		}
	}
	if got := slides[0].GetNotes(); got != "Speak slowly" {
		t.Fatalf("notes: want=%q got=%q", "Speak slowly", got)
	}
	if contains(first, "Speak slowly") {
		t.Fatalf("speaker notes must not be drawn on the slide: %v", first)
	}
	if slides[1].GetNotes() != "" {
		t.Fatalf("slide 2 notes: want empty got=%q", slides[1].GetNotes())
	}
	for i, sl := range slides {
		if n := textShapeCount(sl); n != 2 {
			t.Fatalf("slide %d text boxes: want=2 (title, body) got=%d", i+1, n)
		}
	}
	second := slideTexts(slides[1])
	if !contains(second, "Plain") || !contains(second, "Body two") {
		t.Fatalf("slide 2 text: %v", second)
	}
	if strings.Join(progress, ",") != "slide,slide,done" {
		t.Fatalf("progress: got=%v", progress)
	}
}

func TestExportToDeckFileWritesPPTX(t *testing.T) {
	p := &deck.Presentation{Title: "Quarterly Review", Slides: []deck.Slide{{Title: "A", Body: "B"}}}
	f, err := New(logger.Nop(), nil).ExportToDeckFile(context.Background(), p, "", nil)
	if err != nil {
		t.Fatalf("ExportToDeckFile: %v", err)
	}
	if !bytes.HasPrefix(f.Data, []byte("PK")) {
		t.Fatalf("output is not a zip container")
	}
	if !strings.HasPrefix(f.Name, "quarterly_review_") || !strings.HasSuffix(f.Name, ".pptx") {
		t.Fatalf("filename: got=%q", f.Name)
	}
}

func TestExportCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &deck.Presentation{Title: "X", Slides: []deck.Slide{{Title: "A", Body: "B"}}}
	if _, err := New(logger.Nop(), nil).ExportToDeckFile(ctx, p, "", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled got=%v", err)
	}
}

func TestRemoteImageFailureUsesPlaceholder(t *testing.T) {
	fetch := fetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		return nil, errors.New("connection refused")
	})
	e := New(logger.Nop(), fetch)
	data, mime, ok := e.loadImage(context.Background(), "https://img.example/missing.png")
	if ok {
		t.Fatalf("want placeholder")
	}
	if mime != "image/png" || !bytes.Equal(data, placeholder()) {
		t.Fatalf("unexpected placeholder: mime=%s len=%d", mime, len(data))
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("placeholder png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1 || b.Dy() != 1 {
		t.Fatalf("placeholder size: %v", b)
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Fatalf("placeholder must be transparent")
	}

	p := &deck.Presentation{Title: "Remote", Slides: []deck.Slide{{Title: "A", Body: "B", ImageURL: strPtr("https://img.example/missing.png")}}}
	if _, err := e.ExportToDeckFile(context.Background(), p, "", nil); err != nil {
		t.Fatalf("export must complete with placeholder: %v", err)
	}
}

func TestNonNativeImagesConvertToPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 2))); err != nil {
		t.Fatalf("bmp.Encode: %v", err)
	}
	fetch := fetchFunc(func(ctx context.Context, url string) ([]byte, error) { return buf.Bytes(), nil })
	data, mime, ok := New(logger.Nop(), fetch).loadImage(context.Background(), "https://img.example/a.bmp")
	if !ok || mime != "image/png" {
		t.Fatalf("want converted png got mime=%s ok=%v", mime, ok)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Fatalf("size: got=%v", b)
	}
}

func TestFilenamesNeverCollide(t *testing.T) {
	e := New(logger.Nop(), nil)
	fixed := time.UnixMilli(1700000000000)
	e.now = func() time.Time { return fixed }
	a := e.Filename("Same Title")
	b := e.Filename("Same Title")
	if a == b {
		t.Fatalf("filenames collided: %s", a)
	}
	if a != "same_title_1700000000000.pptx" || b != "same_title_1700000000001.pptx" {
		t.Fatalf("unexpected names: %s %s", a, b)
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Colonizing Mars!":    "colonizing_mars",
		"  Q3 -- Results  ":   "q3_results",
		"":                    "presentation",
		"???":                 "presentation",
		"Café Strategy 2024":  "caf_strategy_2024",
		"already_snake_case":  "already_snake_case",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Fatalf("Slug(%q): want=%q got=%q", in, want, got)
		}
	}
}

func TestExportToDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	p := &deck.Presentation{Title: "Dir", Slides: []deck.Slide{{Title: "A", Body: "B"}}}
	path, err := New(logger.Nop(), nil).ExportToDir(context.Background(), dir, p, "", nil)
	if err != nil {
		t.Fatalf("ExportToDir: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}
}

func TestExportedNotesLandOnNotesPage(t *testing.T) {
	p := &deck.Presentation{Title: "Notes", Slides: []deck.Slide{
		{Title: "A", Body: "B", Notes: "presenter only"},
	}}
	f, err := New(logger.Nop(), nil).ExportToDeckFile(context.Background(), p, "", nil)
	if err != nil {
		t.Fatalf("ExportToDeckFile: %v", err)
	}
	pres, err := ppt.ReadFrom(bytes.NewReader(f.Data), int64(len(f.Data)))
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	slides := pres.GetAllSlides()
	if len(slides) != 1 {
		t.Fatalf("slides: want=1 got=%d", len(slides))
	}
	if got := slides[0].GetNotes(); !strings.Contains(got, "presenter only") {
		t.Fatalf("notes: want %q got=%q", "presenter only", got)
	}
	if contains(slideTexts(slides[0]), "presenter only") {
		t.Fatalf("notes leaked onto the slide face")
	}
}
