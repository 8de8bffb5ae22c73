package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics handler to return 200, got %d", rr.Code)
	}
	return rr.Body.String()
}

func TestCollectorRecordsHTTPMetricsByPattern(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /forecast/{kind}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	instrumented := collector.InstrumentHandler(mux)

	rr := httptest.NewRecorder()
	instrumented.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/forecast/grid", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}

	body := scrape(t, collector)
	if !strings.Contains(body, `gridcast_http_requests_total{method="POST",route="POST /forecast/{kind}",status="202"} 1`) {
		t.Fatalf("requests_total metric not recorded, body=%q", body)
	}
	if !strings.Contains(body, `gridcast_http_request_duration_seconds_count{method="POST",route="POST /forecast/{kind}",status="202"} 1`) {
		t.Fatalf("request_duration_seconds_count metric not recorded, body=%q", body)
	}
}

func TestCollectorLabelsUnmatchedRoutes(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	instrumented := collector.InstrumentHandler(http.NotFoundHandler())
	instrumented.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/path/123", nil))

	body := scrape(t, collector)
	if !strings.Contains(body, `route="unmatched",status="404"`) {
		t.Fatalf("expected unmatched route label, body=%q", body)
	}
}

func TestCollectorRecordsPipelineMetrics(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	collector.ObserveCompletion("groq", "success", 1500*time.Millisecond)
	collector.ObserveCompletion("groq", "timeout", 45*time.Second)
	collector.ObserveForecast("grid", "complete")

	body := scrape(t, collector)
	for _, want := range []string{
		`gridcast_completion_attempts_total{outcome="success",provider="groq"} 1`,
		`gridcast_completion_attempts_total{outcome="timeout",provider="groq"} 1`,
		`gridcast_completion_duration_seconds_count{provider="groq"} 2`,
		`gridcast_forecast_outcomes_total{kind="grid",outcome="complete"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in metrics output", want)
		}
	}
}
