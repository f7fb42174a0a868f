package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("metrics scrape: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	return string(b)
}

func TestMetricsHandler_Smoke(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, true)

	ObserveHTTP("GET", "/map/observatory", 200, 0.001)

	body := scrape(t, reg)
	if !strings.Contains(body, `http_request_duration_seconds_bucket{method="GET",route="/map/observatory",status="200"`) {
		t.Fatalf("missing http_request_duration_seconds; got:\n%s", body)
	}
	if !strings.Contains(body, `http_requests_total{method="GET",route="/map/observatory",status="200"} 1`) {
		t.Fatalf("missing http_requests_total sample; got:\n%s", body)
	}
}

func TestResolveAndJobCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, true)

	ObserveResolve("hit")
	ObserveResolve("absent")
	ObserveResolve("absent")
	IncResolveCacheHit()
	IncResolveCacheMiss()
	ObserveJob("pollution", nil, 20*time.Millisecond, 3)
	ObserveJob("pollution", errors.New("boom"), time.Millisecond, 0)
	ObserveStoreOp("mget", nil, 0.001)

	body := scrape(t, reg)
	for _, want := range []string{
		`proximity_resolve_total{outcome="absent"} 2`,
		`proximity_resolve_total{outcome="hit"} 1`,
		`proximity_cache_results_total{outcome="hit"} 1`,
		`ingest_job_runs_total{job="pollution",result="error"} 1`,
		`ingest_job_runs_total{job="pollution",result="ok"} 1`,
		`ingest_items_total{job="pollution"} 3`,
		`store_op_total{op="mget",result="ok"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in payload:\n%s", want, body)
		}
	}
}

func TestInitDisabled_DoesNotRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, false)
	ObserveResolve("hit")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) != 0 {
		t.Fatalf("expected empty registry, got %d families", len(mfs))
	}
}
