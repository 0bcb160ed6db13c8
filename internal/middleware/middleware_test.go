package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	chiMid "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"etfsave.life/web/internal/i18n"
	"etfsave.life/web/internal/observability"
)

type nopSource struct{}

func (nopSource) Load(context.Context, string) (i18n.Pack, error) { return i18n.Pack{}, nil }

func newBundle(t *testing.T) *i18n.Bundle {
	t.Helper()
	b, err := i18n.New(nopSource{}, "ko", []string{"ko", "vi", "zh", "en", "ja", "th", "tl", "km"})
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	return b
}

func serveLocale(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var got string
	h := Locale(newBundle(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Lang(r, "??")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, got
}

func TestLocalePrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?lang=vi", nil)
	req.AddCookie(&http.Cookie{Name: LangCookie, Value: "ja"})
	req.Header.Set("Accept-Language", "en-US")
	rec, lang := serveLocale(t, req)
	if lang != "vi" {
		t.Fatalf("query should win, got %q", lang)
	}
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].Name != LangCookie || c[0].Value != "vi" {
		t.Fatalf("expected language cookie to be stored, got %v", c)
	}
	if rec.Header().Get("Content-Language") != "vi" {
		t.Fatalf("missing Content-Language")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: LangCookie, Value: "ja"})
	req.Header.Set("Accept-Language", "en-US")
	rec, lang = serveLocale(t, req)
	if lang != "ja" {
		t.Fatalf("cookie should beat Accept-Language, got %q", lang)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("cookie should not be rewritten without a query override")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "th-TH,en;q=0.5")
	if _, lang = serveLocale(t, req); lang != "th" {
		t.Fatalf("expected Accept-Language match, got %q", lang)
	}

	req = httptest.NewRequest(http.MethodGet, "/?lang=fr", nil)
	req.AddCookie(&http.Cookie{Name: LangCookie, Value: "xx"})
	rec, lang = serveLocale(t, req)
	if lang != "ko" {
		t.Fatalf("expected fallback ko, got %q", lang)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("unsupported query must not be stored")
	}
}

func TestLangWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := Lang(req, "ko"); got != "ko" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestVaryLocaleAndHTMX(t *testing.T) {
	var isHX bool
	h := VaryLocale(HTMX(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		isHX = IsHTMX(r.Context())
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if !isHX {
		t.Fatalf("expected htmx request")
	}
	vary := rec.Header().Values("Vary")
	if len(vary) != 3 {
		t.Fatalf("unexpected Vary %v", vary)
	}
}

func TestLoggerInjectsAndLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := chi.NewRouter()
	r.Use(chiMid.RequestID)
	r.Use(Logger(zap.New(core)))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		observability.FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/7", nil))

	if logs.Len() != 2 {
		t.Fatalf("expected 2 log lines, got %d", logs.Len())
	}
	inside := logs.All()[0]
	if inside.ContextMap()["request_id"] == "" {
		t.Fatalf("request logger missing request id: %v", inside.ContextMap())
	}
	done := logs.All()[1].ContextMap()
	if done["route"] != "/items/{id}" || done["status"] != int64(http.StatusTeapot) || done["bytes"] != int64(2) {
		t.Fatalf("unexpected completion fields: %v", done)
	}
	if logs.All()[1].Level != zap.WarnLevel {
		t.Fatalf("4xx should log at warn")
	}
}

func TestAssetsWithCache(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "css"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "css", "site.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := AssetsWithCache(dir, "/assets", false)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/css/site.css", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "body{}" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	et := rec.Header().Get("ETag")
	if et == "" {
		t.Fatalf("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/assets/css/site.css", nil)
	req.Header.Set("If-None-Match", et)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/css/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("directory listing should be hidden, got %d", rec.Code)
	}

	dev := AssetsWithCache(dir, "/assets", true)
	rec = httptest.NewRecorder()
	dev.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/css/site.css", nil))
	if rec.Header().Get("Cache-Control") != "no-cache" || rec.Header().Get("ETag") != "" {
		t.Fatalf("dev mode should not cache: %v", rec.Header())
	}
}
