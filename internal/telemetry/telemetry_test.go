package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordItem([]string{"semiconductor", "artificial_intelligence"}, 2*time.Millisecond)
	m.RecordItem(nil, time.Millisecond)
	m.RecordError("content")
	m.RecordError("")
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)
	m.RecordBatch(100)

	if got := testutil.ToFloat64(m.ItemsProcessed); got != 2 {
		t.Errorf("items processed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ItemsLabeled); got != 1 {
		t.Errorf("items labeled = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Labels.WithLabelValues("semiconductor")); got != 1 {
		t.Errorf("semiconductor labels = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ItemErrors.WithLabelValues("internal")); got != 1 {
		t.Errorf("internal errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues(CacheMiss)); got != 2 {
		t.Errorf("cache misses = %v, want 2", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	// Should not panic
	m.RecordItem([]string{"x"}, time.Millisecond)
	m.RecordError("store")
	m.RecordCacheLookup(true)
	m.RecordBatch(1)
}

func TestMetrics_Handler(t *testing.T) {
	m := New(nil)
	m.RecordItem([]string{"gaming"}, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{
		"industria_items_processed_total 1",
		`industria_labels_total{industry="gaming"} 1`,
		"industria_scoring_duration_seconds_count 1",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}

func TestNew_SeparateRegistries(t *testing.T) {
	// Registering twice on fresh registries must not collide
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
