package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEngineMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngineMetrics(reg)
	m.ObserveAdmission("public", "admitted")
	m.ObserveAdmission("public", "admitted")
	m.ObserveAdmission("admin", "slot_taken")
	m.ObserveTransition("admin", "confirmed", "ok")
	m.ObserveNotification("request", "failed")
	m.ObserveAvailability(0.02)

	if got := testutil.ToFloat64(m.admissions.WithLabelValues("public", "admitted")); got != 2 {
		t.Fatalf("admissions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("request", "failed")); got != 1 {
		t.Fatalf("notifications = %v, want 1", got)
	}
}

func TestEngineMetricsNilSafe(t *testing.T) {
	var m *EngineMetrics
	m.ObserveAdmission("public", "admitted")
	m.ObserveTransition("token", "cancelled", "ok")
	m.ObserveNotification("cancellation", "sent")
	m.ObserveAvailability(0.1)
}
