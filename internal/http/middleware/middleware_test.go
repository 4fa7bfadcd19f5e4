package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/deckforge-backend/internal/observability"
	"github.com/yungbote/deckforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

func TestTraceContextEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext(), RequestLogger(logger.Nop()))
	var seen string
	r.GET("/x", func(c *gin.Context) {
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			seen = td.RequestID
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen != "req-123" {
		t.Fatalf("request id: want=%q got=%q", "req-123", seen)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("response header: want=%q got=%q", "req-123", got)
	}
	if rec.Header().Get("X-Trace-Id") == "" {
		t.Fatalf("trace id should be generated")
	}
}

func TestMetricsObservesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := observability.New()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/presentations/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/presentations/abc", nil))

	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `deckforge_http_requests_total{method="GET",route="/api/presentations/:id",status="404"} 1`
	if !strings.Contains(scrape.Body.String(), want) {
		t.Fatalf("metrics output missing %s", want)
	}
}

func TestTraceContextReplacesUnprintableIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "bad id\twith spaces")
	req.Header.Set(HeaderTraceID, strings.Repeat("a", 200))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get(HeaderRequestID); got == "" || strings.Contains(got, " ") {
		t.Fatalf("request id should be minted, got=%q", got)
	}
	if got := rec.Header().Get(HeaderTraceID); len(got) != 32 {
		t.Fatalf("trace id should be minted as 32 hex chars, got=%q", got)
	}
}

func TestMetricsSkipsSelfScrape(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := observability.New()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/metrics", gin.WrapH(m.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	scrape := httptest.NewRecorder()
	r.ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if strings.Contains(scrape.Body.String(), `route="/metrics"`) {
		t.Fatalf("metrics endpoint should not observe itself")
	}
}
