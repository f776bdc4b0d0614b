package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics covers admission, lifecycle, availability and notification dispatch.
type EngineMetrics struct {
	admissions          *prometheus.CounterVec
	transitions         *prometheus.CounterVec
	notifications       *prometheus.CounterVec
	availabilityLatency prometheus.Histogram
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "admissions_total",
			Help:      "Booking admission attempts by source and outcome",
		}, []string{"source", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "transitions_total",
			Help:      "Appointment status transitions by actor and outcome",
		}, []string{"actor", "to", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "notifications_total",
			Help:      "Notification dispatches by kind and outcome",
		}, []string{"kind", "outcome"}),
		availabilityLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "availability_seconds",
			Help:      "Latency of availability computation including collaborator reads",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.admissions, m.transitions, m.notifications, m.availabilityLatency)
	return m
}

func (m *EngineMetrics) ObserveAdmission(source, outcome string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(source, outcome).Inc()
}

func (m *EngineMetrics) ObserveTransition(actor, to, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(actor, to, outcome).Inc()
}

func (m *EngineMetrics) ObserveNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, outcome).Inc()
}

func (m *EngineMetrics) ObserveAvailability(seconds float64) {
	if m == nil {
		return
	}
	m.availabilityLatency.Observe(seconds)
}
