package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestProvider_RegistersStandardCollectors_AndBuildInfo(t *testing.T) {
	p := Init(Config{Service: "airmap", Build: BuildInfo{Version: "test", Revision: "r", BuildDate: "now"}})

	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "smoke"})
	p.Register(g)
	g.Set(42)

	if n := testutil.CollectAndCount(g); n == 0 {
		t.Fatalf("expected at least 1 sample from test_gauge, got %d", n)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()

	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected go_goroutines in payload; got:\n%s", body)
	}
	if !strings.Contains(body, "process_cpu_seconds_total") && !strings.Contains(body, "process_start_time_seconds") {
		t.Fatalf("expected process_* metrics in payload; got:\n%s", body)
	}
	if !strings.Contains(body, `app_build_info{build_date="now",revision="r",service="airmap",version="test"} 1`) {
		t.Fatalf("expected app_build_info in payload; got:\n%s", body)
	}
}

func TestProvider_Defaults(t *testing.T) {
	p := Init(Config{Enabled: true})
	if p.Path() != "/metrics" {
		t.Fatalf("Path = %q", p.Path())
	}
	if p.Separate() {
		t.Fatalf("no Addr configured, Separate should be false")
	}
	p2 := Init(Config{Enabled: true, Addr: ":0"})
	if !p2.Separate() {
		t.Fatalf("Addr configured, Separate should be true")
	}
}
