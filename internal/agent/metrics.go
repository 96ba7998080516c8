package agent

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"monnet/internal/engine"
	"monnet/internal/snapshot"
)

const namespace = "monnet"

// Metrics are the agent's own counters, kept on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	eventsFired   *prometheus.CounterVec
	changed       *prometheus.CounterVec
	sinkErrors    *prometheus.CounterVec
	armed         prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed polling cycles.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one polling cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		eventsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_fired_total",
			Help:      "Threshold events that passed deduplication.",
		}, []string{"name", "severity"}),
		changed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changed_families_total",
			Help:      "Families whose reading differed from the stored one.",
		}, []string{"family"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed deliveries to the server, by operation.",
		}, []string{"op"}),
		armed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "armed_identities",
			Help:      "Event identities currently suppressing re-fires.",
		}),
	}
	m.registry.MustRegister(m.cycles, m.cycleDuration, m.eventsFired, m.changed, m.sinkErrors, m.armed)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(d time.Duration, res engine.Result, armed int) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
	for f := range res.Changed {
		m.changed.WithLabelValues(string(f)).Inc()
	}
	for _, ev := range res.Events {
		m.eventsFired.WithLabelValues(ev.Name, ev.Severity.String()).Inc()
	}
	m.armed.Set(float64(armed))
}

func (m *Metrics) FamilyChanged(f snapshot.Family) {
	if m == nil {
		return
	}
	m.changed.WithLabelValues(string(f)).Inc()
}

func (m *Metrics) SinkError(op string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(op).Inc()
}
