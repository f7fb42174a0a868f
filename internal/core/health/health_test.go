package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLiveness_Handler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	Liveness()(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	ct := rr.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q want text/plain", ct)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "ok" {
		t.Fatalf("body=%q want ok", got)
	}
}

type reporter struct {
	ready bool
	parts []int32
}

func (r reporter) Readiness() (bool, []int32) { return r.ready, r.parts }

func okCheck(context.Context) error   { return nil }
func downCheck(context.Context) error { return errors.New("connection refused") }

func TestReadiness(t *testing.T) {
	cases := []struct {
		name   string
		rr     ReadinessReporter
		checks []Check
		code   int
		body   string
	}{
		{"checks only", nil, []Check{{"redis", okCheck}}, http.StatusOK, `"status":"ready"`},
		{"runner ready", reporter{true, []int32{0, 1}}, []Check{{"redis", okCheck}}, http.StatusOK, `"partitions":[0,1]`},
		{"runner not ready", reporter{false, nil}, []Check{{"redis", okCheck}}, http.StatusServiceUnavailable, `"status":"not_ready"`},
		{"redis down", reporter{true, nil}, []Check{{"redis", downCheck}}, http.StatusServiceUnavailable, `"redis":"connection refused"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			Readiness(tc.rr, tc.checks...)(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rr.Code != tc.code {
				t.Fatalf("status=%d want %d", rr.Code, tc.code)
			}
			if !strings.Contains(rr.Body.String(), tc.body) {
				t.Fatalf("body=%s want substring %s", rr.Body.String(), tc.body)
			}
		})
	}
}
