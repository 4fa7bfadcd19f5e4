package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
	httpH "github.com/yungbote/deckforge-backend/internal/http/handlers"
	deckmod "github.com/yungbote/deckforge-backend/internal/modules/deck"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/assembler"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/export"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/generation"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/refine"
	"github.com/yungbote/deckforge-backend/internal/modules/deck/storage"
	"github.com/yungbote/deckforge-backend/internal/platform/credentials"
	"github.com/yungbote/deckforge-backend/internal/platform/kvstore"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
	"github.com/yungbote/deckforge-backend/internal/platform/openai"
)

type fakeAI struct {
	text string
	err  error
}

func (f *fakeAI) GenerateJSONText(ctx context.Context, system, user, name string, schema map[string]any) (string, error) {
	return f.text, f.err
}

func (f *fakeAI) StreamText(ctx context.Context, system string, turns []openai.Turn, onDelta func(string)) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	onDelta("Shorter ")
	onDelta("titles.")
	return "Shorter titles.", nil
}

type fixedImages string

func (f fixedImages) GenerateImage(ctx context.Context, d string) (string, error) { return string(f), nil }

const oneSlideDeck = `{"title":"Mars","slides":[{"title":"Why","body":"Because","notes":null,"imageUrl":null,"ai_image_description":"red planet"}],"theme":null}`

func newTestRouter(t *testing.T, ai *fakeAI, quota int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	kv := kvstore.NewMemory(quota)
	uc := deckmod.New(deckmod.UsecasesDeps{
		Log:           log,
		Generator:     generation.New(log, ai),
		Assembler:     assembler.New(log, fixedImages("https://img.example/x.png"), assembler.Config{}),
		Storage:       storage.New(log, kv),
		Exporter:      export.New(log, nil),
		Refiner:       refine.New(log, ai),
		PublicBaseURL: "https://decks.example",
	})
	return NewRouter(RouterConfig{
		Log:                 log,
		HealthHandler:       httpH.NewHealthHandler("test"),
		CredentialsHandler:  httpH.NewCredentialsHandler(log, credentials.New(log, kvstore.NewMemory(0))),
		PresentationHandler: httpH.NewPresentationHandler(log, uc),
		ShareHandler:        httpH.NewShareHandler(log, uc),
		ExportHandler:       httpH.NewExportHandler(log, uc),
		ChatHandler:         httpH.NewChatHandler(log, uc),
	})
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return env.Error.Code
}

func TestHealthcheck(t *testing.T) {
	rec := do(newTestRouter(t, &fakeAI{}, 0), http.MethodGet, "/healthcheck", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
}

func TestGenerateEndpoint(t *testing.T) {
	r := newTestRouter(t, &fakeAI{text: oneSlideDeck}, 0)
	rec := do(r, http.MethodPost, "/api/presentations/generate", `{"topic":"Mars","description":"Why go","numberOfSlides":1,"duration":5,"style":"casual"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var out struct {
		Presentation deck.Presentation `json:"presentation"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Presentation.Slides) != 1 || *out.Presentation.Slides[0].ImageURL != "https://img.example/x.png" {
		t.Fatalf("unexpected deck: %+v", out.Presentation)
	}
}

func TestGenerateEndpointErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		ai     *fakeAI
		body   string
		status int
		code   string
	}{
		{"invalid request", &fakeAI{text: oneSlideDeck}, `{"topic":"","description":"d","numberOfSlides":20,"duration":5}`, http.StatusBadRequest, "validation_failed"},
		{"bad model output", &fakeAI{text: "not json"}, `{"topic":"t","description":"d","numberOfSlides":1,"duration":5}`, http.StatusBadGateway, "generation_failed"},
		{"model deck fails validation", &fakeAI{text: `{"title":"Deck","slides":[]}`}, `{"topic":"t","description":"d","numberOfSlides":1,"duration":5}`, http.StatusBadGateway, "generation_failed"},
		{"no credential", &fakeAI{err: openai.ErrNoCredential}, `{"topic":"t","description":"d","numberOfSlides":1,"duration":5}`, http.StatusUnauthorized, "authentication_required"},
	}
	for _, tc := range cases {
		rec := do(newTestRouter(t, tc.ai, 0), http.MethodPost, "/api/presentations/generate", tc.body)
		if rec.Code != tc.status {
			t.Fatalf("%s: status want=%d got=%d body=%s", tc.name, tc.status, rec.Code, rec.Body.String())
		}
		if got := errorCode(t, rec); got != tc.code {
			t.Fatalf("%s: code want=%s got=%s", tc.name, tc.code, got)
		}
	}
}

func TestStoreAndGetPresentation(t *testing.T) {
	r := newTestRouter(t, &fakeAI{}, 0)
	rec := do(r, http.MethodPost, "/api/presentations", `{"title":"T","slides":[{"title":"A","body":"B"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("store status: %d %s", rec.Code, rec.Body.String())
	}
	var res struct {
		ID       string `json:"id"`
		Degraded bool   `json:"degraded"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if res.ID == "" || res.Degraded {
		t.Fatalf("unexpected store result: %s", rec.Body.String())
	}

	if rec := do(r, http.MethodGet, "/api/presentations/"+res.ID, ""); rec.Code != http.StatusOK {
		t.Fatalf("get status: %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/presentations/unknown", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing status: want=404 got=%d", rec.Code)
	}
}

func TestStoreFailureStillReturnsID(t *testing.T) {
	r := newTestRouter(t, &fakeAI{}, 16)
	rec := do(r, http.MethodPost, "/api/presentations", `{"title":"T","slides":[{"title":"A","body":"B"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	var res struct {
		ID      string `json:"id"`
		Warning string `json:"warning"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if res.ID == "" || res.Warning == "" {
		t.Fatalf("want id and warning: %s", rec.Body.String())
	}
}

func TestShareRoundTripAndQR(t *testing.T) {
	r := newTestRouter(t, &fakeAI{}, 0)
	rec := do(r, http.MethodPost, "/api/share", `{"title":"T","slides":[{"title":"A","body":"B"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("share status: %d %s", rec.Code, rec.Body.String())
	}
	var link deckmod.ShareLink
	_ = json.Unmarshal(rec.Body.Bytes(), &link)
	if !strings.HasPrefix(link.URL, "https://decks.example/present/") {
		t.Fatalf("url: %s", link.URL)
	}

	for _, path := range []string{"/api/share/" + link.Token, "/present/" + link.Token} {
		if rec := do(r, http.MethodGet, path, ""); rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
	}
	qr := do(r, http.MethodGet, "/api/share/"+link.Token+"/qr.png?size=128", "")
	if qr.Code != http.StatusOK || qr.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("qr: status=%d type=%s", qr.Code, qr.Header().Get("Content-Type"))
	}
	if rec := do(r, http.MethodGet, "/api/share/"+link.Token+"/qr.png?size=big", ""); rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_size" {
		t.Fatalf("qr size: status=%d body=%s", rec.Code, rec.Body.String())
	}

	bad := do(r, http.MethodGet, "/api/share/%21%21garbage", "")
	if bad.Code != http.StatusBadRequest || errorCode(t, bad) != "invalid_share_link" {
		t.Fatalf("bad token: status=%d body=%s", bad.Code, bad.Body.String())
	}
	emptyDeck := base64.RawURLEncoding.EncodeToString([]byte(`{"title":"Deck","slides":[]}`))
	if rec := do(r, http.MethodGet, "/api/share/"+emptyDeck, ""); rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_share_link" {
		t.Fatalf("invalid deck token: status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestExportEndpoint(t *testing.T) {
	r := newTestRouter(t, &fakeAI{}, 0)
	rec := do(r, http.MethodPost, "/api/export", `{"presentation":{"title":"My Deck","slides":[{"title":"A","body":"B"}]}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "my_deck_") || !strings.Contains(cd, ".pptx") {
		t.Fatalf("content-disposition: %q", cd)
	}
}

func TestCredentialsLifecycle(t *testing.T) {
	r := newTestRouter(t, &fakeAI{}, 0)
	if rec := do(r, http.MethodPut, "/api/credentials", `{"apiKey":"  "}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank key: want=400 got=%d", rec.Code)
	}
	if rec := do(r, http.MethodPut, "/api/credentials", `{"apiKey":"sk-test-123"}`); rec.Code != http.StatusOK {
		t.Fatalf("set: %d", rec.Code)
	}
	rec := do(r, http.MethodGet, "/api/credentials", "")
	if !strings.Contains(rec.Body.String(), `"configured":true`) {
		t.Fatalf("status after set: %s", rec.Body.String())
	}
	do(r, http.MethodDelete, "/api/credentials", "")
	rec = do(r, http.MethodGet, "/api/credentials", "")
	if !strings.Contains(rec.Body.String(), `"configured":false`) {
		t.Fatalf("status after clear: %s", rec.Body.String())
	}
}

func TestChatStreamsSSE(t *testing.T) {
	r := newTestRouter(t, &fakeAI{}, 0)
	rec := do(r, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"help"}]}`)
	body := rec.Body.String()
	if !strings.Contains(body, "event: delta") || !strings.Contains(body, "event: done") {
		t.Fatalf("unexpected stream: %s", body)
	}

	r = newTestRouter(t, &fakeAI{err: errors.New("upstream down")}, 0)
	rec = do(r, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"help"}]}`)
	if !strings.Contains(rec.Body.String(), "event: error") {
		t.Fatalf("want error event: %s", rec.Body.String())
	}
}

func TestChatRejectsBadConversationBeforeStreaming(t *testing.T) {
	ai := &fakeAI{}
	r := newTestRouter(t, ai, 0)
	rec := do(r, http.MethodPost, "/api/chat", `{"messages":[{"role":"assistant","content":"x"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: want=%d got=%d body=%s", http.StatusBadRequest, rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "validation_failed") {
		t.Fatalf("want validation_failed: %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "event:") {
		t.Fatalf("no stream should be opened: %s", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type: got=%s", ct)
	}
}
