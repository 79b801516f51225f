package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// findMetric returns the gathered family called name, or nil.
func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

// counterWithLabel returns the value of the series in mf carrying label=value.
func counterWithLabel(mf *dto.MetricFamily, label, value string) (float64, bool) {
	if mf == nil {
		return 0, false
	}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return m.GetCounter().GetValue(), true
			}
		}
	}
	return 0, false
}

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	_ = NewMetrics(reg)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/metrics", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_RetrievalFailureHook(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RetrievalFailed("embed", errors.New("boom"))
	m.RetrievalFailed("embed", errors.New("boom"))
	m.RetrievalFailed("search", errors.New("boom"))

	mf := findMetric(t, reg, "docchat_retrieval_failures_total")
	if v, ok := counterWithLabel(mf, "stage", "embed"); !ok || v != 2 {
		t.Errorf("embed failures = %v (found %v), want 2", v, ok)
	}
	if v, ok := counterWithLabel(mf, "stage", "search"); !ok || v != 1 {
		t.Errorf("search failures = %v (found %v), want 1", v, ok)
	}
}

func Test_Metrics_IngestionCounters(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ChunksIngested(3)
	m.ChunksIngested(4)
	m.IngestRun(nil)
	m.IngestRun(errors.New("embedder down"))

	mf := findMetric(t, reg, "docchat_ingestion_chunks_total")
	if mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 7 {
		t.Errorf("chunks_total: want 7, got %v", mf)
	}
	runs := findMetric(t, reg, "docchat_ingestion_runs_total")
	if v, _ := counterWithLabel(runs, "outcome", "ok"); v != 1 {
		t.Errorf("ok runs = %v, want 1", v)
	}
	if v, _ := counterWithLabel(runs, "outcome", "error"); v != 1 {
		t.Errorf("error runs = %v, want 1", v)
	}
}

func Test_Metrics_PendingGaugeTracksService(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	pending := 0
	m.trackPending(func() int { return pending })
	pending = 3

	mf := findMetric(t, reg, "docchat_conversations_pending")
	if mf == nil {
		t.Fatal("docchat_conversations_pending not found")
	}
	if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 3 {
		t.Errorf("pending = %v, want 3", v)
	}
}

func Test_Metrics_InstrumentRecordsStatus(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	h := m.instrument("files", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/files", nil))

	mf := findMetric(t, reg, "docchat_http_requests_total")
	if v, ok := counterWithLabel(mf, "code", "418"); !ok || v != 1 {
		t.Errorf("requests_total{code=418} = %v (found %v), want 1", v, ok)
	}
}
