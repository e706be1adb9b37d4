package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fieldsense"

// Metrics holds the counters exported by the sensor and the collector.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cycles         prometheus.Counter
	sourceFailures *prometheus.CounterVec
	observations   *prometheus.CounterVec
	alerts         *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	records        *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total sampling cycles run.",
		}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Total failed source invocations by source.",
		}, []string{"source"}),
		observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Total observations collected by kind.",
		}, []string{"kind"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Total traffic alerts raised by kind.",
		}, []string{"kind"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Total batch deliveries by sink and status.",
		}, []string{"sink", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collected_records_total",
			Help:      "Total records received by the collector by status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		m.cycles,
		m.sourceFailures,
		m.observations,
		m.alerts,
		m.deliveries,
		m.records,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CycleCompleted() {
	if m == nil {
		return
	}
	m.cycles.Inc()
}

func (m *Metrics) SourceFailed(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) Observed(kind string) {
	if m == nil {
		return
	}
	m.observations.WithLabelValues(kind).Inc()
}

func (m *Metrics) Alerted(kind string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(kind).Inc()
}

func (m *Metrics) Delivered(sink string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.deliveries.WithLabelValues(sink, status).Inc()
}

func (m *Metrics) Collected(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.records.WithLabelValues(status).Add(float64(n))
}
