package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	ExposeBuildInfo("test")
	ObserveHTTP("GET", "/v1/sessions/{id}/passes", 200, 0.001)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{"app_build_info", "http_requests_total"} {
		if !strings.Contains(body, name) {
			t.Fatalf("metrics payload missing %s; got:\n%s", name, body)
		}
	}
}

func TestObserveFilterMutation_LabelsOutcome(t *testing.T) {
	before := testutil.ToFloat64(filterMutations.WithLabelValues("operator", "error"))
	ObserveFilterMutation("operator", errors.New("bad value"))
	ObserveFilterMutation("operator", nil)
	after := testutil.ToFloat64(filterMutations.WithLabelValues("operator", "error"))
	if after-before != 1 {
		t.Fatalf("error counter delta=%v want 1", after-before)
	}
}

func TestObserveViewport_ErrorSkipsHistograms(t *testing.T) {
	before := testutil.CollectAndCount(viewportRawFeatures)
	ObserveViewport("error", 0, 0)
	ObserveViewport("ok", 12, 2)
	if got := testutil.ToFloat64(viewportRecomputes.WithLabelValues("error")); got < 1 {
		t.Fatalf("error recomputes=%v", got)
	}
	if testutil.CollectAndCount(viewportRawFeatures) != before {
		t.Fatalf("histogram family count changed unexpectedly")
	}
	ObserveFetch("metadata", "upstream", nil, 10*time.Millisecond)
}
