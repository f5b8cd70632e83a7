package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名のメトリクスファミリーを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if NewCollector(reg) == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordListingCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordListingCreated()
	c.RecordListingCreated()

	mf := findMetric(t, reg, "ecofinds_listings_created_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 2 {
		t.Errorf("listings_created_total = %v, want 2", val)
	}
}

func TestRecordPurchases_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPurchases(3)
	c.RecordPurchases(0)

	mf := findMetric(t, reg, "ecofinds_purchases_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 3 {
		t.Errorf("purchases_total = %v, want 3", val)
	}
}

// TestRecordCheckoutLine_LabelsByOutcome は結果ラベルごとに集計されることを検証する。
func TestRecordCheckoutLine_LabelsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCheckoutLine("committed")
	c.RecordCheckoutLine("committed")
	c.RecordCheckoutLine("conflict")

	mf := findMetric(t, reg, "ecofinds_checkout_lines_total")
	got := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "outcome" {
				got[lp.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	if got["committed"] != 2 || got["conflict"] != 1 {
		t.Errorf("checkout_lines_total = %v, want committed=2 conflict=1", got)
	}
}

func TestRecordHTTPStatus_LabelsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(http.StatusNotFound)

	mf := findMetric(t, reg, "ecofinds_http_status_total")
	m := mf.GetMetric()[0]
	if m.GetLabel()[0].GetValue() != "404" {
		t.Errorf("status_code label = %q, want 404", m.GetLabel()[0].GetValue())
	}
}

func TestRecordCheckoutLatency_Observes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCheckoutLatency(150 * time.Millisecond)

	mf := findMetric(t, reg, "ecofinds_checkout_latency_seconds")
	if n := mf.GetMetric()[0].GetHistogram().GetSampleCount(); n != 1 {
		t.Errorf("sample count = %d, want 1", n)
	}
}

func TestRecordImageUpload_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordImageUpload()

	mf := findMetric(t, reg, "ecofinds_image_uploads_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("image_uploads_total = %v, want 1", val)
	}
}

// TestHandler_ServesMetrics はハンドラーがテキスト形式でメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordListingCreated()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ecofinds_listings_created_total 1") {
		t.Errorf("metrics body does not contain listings counter:\n%s", body)
	}
}
