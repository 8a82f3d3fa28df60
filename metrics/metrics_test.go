package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Observe(OpSettlement, "success", 20*time.Millisecond)
	m.Observe(OpSettlement, "success", 30*time.Millisecond)
	m.Observe(OpSettlement, "INSUFFICIENT_BALANCE", time.Millisecond)
	m.Retry(OpSettlement)
	m.Moved(OpNoShow, 20.5)
	m.PublishError()

	if got := testutil.ToFloat64(m.operations.WithLabelValues(OpSettlement, "success")); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues(OpSettlement, "INSUFFICIENT_BALANCE")); got != 1 {
		t.Errorf("failure count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.retries.WithLabelValues(OpSettlement)); got != 1 {
		t.Errorf("retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.moved.WithLabelValues(OpNoShow)); got != 20.5 {
		t.Errorf("moved = %v, want 20.5", got)
	}
	if got := testutil.ToFloat64(m.publishErrors); got != 1 {
		t.Errorf("publish errors = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Observe(OpSettlement, "success", time.Second)
	m.Retry(OpNoShow)
	m.PublishError()
	m.Moved(OpSettlement, 1)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Observe(OpNoShow, "success", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `settlement_operations_total{operation="noshow",outcome="success"} 1`) {
		t.Errorf("metrics output missing counter:\n%s", rec.Body.String())
	}
}
