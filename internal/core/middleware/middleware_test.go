package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mohammed-shakir/airmap/internal/core/observability"
	mylog "github.com/mohammed-shakir/airmap/internal/logger"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestLogging_RequestIDAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.Init(reg, true)
	t.Cleanup(func() { observability.Init(nil, false) })

	var seen string
	r := chi.NewRouter()
	r.Use(Logging(discard()))
	r.Get("/map/{kind}", func(w http.ResponseWriter, req *http.Request) {
		seen = mylog.RequestID(req.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/map/average", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if seen != "abc123" || rr.Header().Get("X-Request-ID") != "abc123" {
		t.Fatalf("request id ctx=%q header=%q", seen, rr.Header().Get("X-Request-ID"))
	}
	n, err := testutil.GatherAndCount(reg, "http_requests_total")
	if err != nil || n != 1 {
		t.Fatalf("http_requests_total series=%d err=%v want 1", n, err)
	}
}

func TestRecover_Returns500(t *testing.T) {
	h := Recover(discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want 500", rr.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := CORS([]string{"https://map.example"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	req := httptest.NewRequest(http.MethodOptions, "/map/average", nil)
	req.Header.Set("Origin", "https://map.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://map.example" {
		t.Fatalf("allow-origin=%q", got)
	}
}
