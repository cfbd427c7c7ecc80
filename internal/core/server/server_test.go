package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/passmap/internal/core/health"
)

func testRouter() http.Handler {
	api := chi.NewRouter()
	api.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("pong")) })
	api.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	ready := health.ReadinessFunc(func() (bool, map[string]string) { return true, nil })
	return NewRouter(slog.New(slog.NewTextHandler(io.Discard, nil)), api, ready)
}

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestRouter_MountsProbesAndAPI(t *testing.T) {
	h := testRouter()
	for _, p := range []string{"/healthz", "/readyz", "/v1/ping"} {
		if rr := get(t, h, http.MethodGet, p); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", p, rr.Code)
		}
	}
	rr := get(t, h, http.MethodGet, "/v1/ping")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID")
	}
}

func TestRouter_MetricsExposeRoutePatterns(t *testing.T) {
	h := testRouter()
	get(t, h, http.MethodGet, "/v1/ping")
	rr := get(t, h, http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `route="/v1/ping"`) {
		t.Fatalf("http metrics missing route label")
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	if rr := get(t, testRouter(), http.MethodGet, "/v1/boom"); rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want 500", rr.Code)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	rr := get(t, testRouter(), http.MethodOptions, "/v1/ping")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d want 204", rr.Code)
	}
	if m := rr.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(m, "PUT") {
		t.Fatalf("allow-methods=%q", m)
	}
}
