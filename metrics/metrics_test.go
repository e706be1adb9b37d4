package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.CycleCompleted()
	m.CycleCompleted()
	m.SourceFailed("gps")
	m.Observed("ble")
	m.Observed("ble")
	m.Alerted("burst")
	m.Delivered("http", nil)
	m.Delivered("http", errors.New("boom"))
	m.Collected("accepted", 3)
	m.Collected("rejected", 0)

	if got := testutil.ToFloat64(m.cycles); got != 2 {
		t.Errorf("Expected 2 cycles, got %v", got)
	}
	if got := testutil.ToFloat64(m.sourceFailures.WithLabelValues("gps")); got != 1 {
		t.Errorf("Expected 1 gps failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.observations.WithLabelValues("ble")); got != 2 {
		t.Errorf("Expected 2 ble observations, got %v", got)
	}
	if got := testutil.ToFloat64(m.alerts.WithLabelValues("burst")); got != 1 {
		t.Errorf("Expected 1 burst alert, got %v", got)
	}
	if got := testutil.ToFloat64(m.deliveries.WithLabelValues("http", "error")); got != 1 {
		t.Errorf("Expected 1 failed delivery, got %v", got)
	}
	if got := testutil.ToFloat64(m.records.WithLabelValues("accepted")); got != 3 {
		t.Errorf("Expected 3 accepted records, got %v", got)
	}
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	// None of these may panic.
	m.CycleCompleted()
	m.SourceFailed("ble")
	m.Observed("wifi")
	m.Alerted("low_traffic")
	m.Delivered("http", nil)
	m.Collected("accepted", 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("Expected 404 from nil metrics handler, got %d", rec.Code)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Alerted("burst")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `fieldsense_alerts_total{kind="burst"} 1`) {
		t.Errorf("Expected alert counter in exposition, got:\n%s", body)
	}
}
