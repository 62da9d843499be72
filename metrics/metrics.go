package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons for advertisements and location fixes.
const (
	ReasonMalformed    = "malformed"
	ReasonUnrecognized = "unrecognized"
	ReasonZeroTick     = "zero_tick"
	ReasonBackpressure = "backpressure"
)

// Metrics is safe to use through a nil pointer, which disables collection.
type Metrics struct {
	registry *prometheus.Registry

	advertisements prometheus.Counter
	dropped        *prometheus.CounterVec
	ticks          *prometheus.CounterVec
	locationFixes  prometheus.Counter
	records        prometheus.Counter
	rowsWritten    prometheus.Counter
	rowErrors      prometheus.Counter
	forwardErrors  *prometheus.CounterVec
	reconnects     *prometheus.CounterVec
	sinceLastTick  *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		advertisements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tirelog_advertisements_total",
			Help: "Advertisements received from the scanner.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tirelog_events_dropped_total",
			Help: "Events dropped before aggregation by reason.",
		}, []string{"reason"}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tirelog_ticks_total",
			Help: "Accepted sensor readings by slot.",
		}, []string{"slot"}),
		locationFixes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tirelog_location_fixes_total",
			Help: "Location fixes received.",
		}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tirelog_records_total",
			Help: "Records computed by the aggregator.",
		}),
		rowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tirelog_rows_written_total",
			Help: "Rows appended to the record file.",
		}),
		rowErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tirelog_row_errors_total",
			Help: "Record file initialization and write failures.",
		}),
		forwardErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tirelog_forward_errors_total",
			Help: "Forwarder failures by forwarder.",
		}, []string{"forwarder"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tirelog_reconnects_total",
			Help: "Source reconnects after an error.",
		}, []string{"source"}),
		sinceLastTick: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tirelog_seconds_since_last_tick",
			Help: "Seconds since the last accepted reading per slot.",
		}, []string{"slot"}),
	}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		m.advertisements,
		m.dropped,
		m.ticks,
		m.locationFixes,
		m.records,
		m.rowsWritten,
		m.rowErrors,
		m.forwardErrors,
		m.reconnects,
		m.sinceLastTick,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the collectors for gathering outside of Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

func (m *Metrics) Advertisement() {
	if m == nil {
		return
	}
	m.advertisements.Inc()
}

func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Tick(slot string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(slot).Inc()
}

func (m *Metrics) LocationFix() {
	if m == nil {
		return
	}
	m.locationFixes.Inc()
}

// Record counts an aggregation cycle and whether its row reached the sink.
func (m *Metrics) Record(written bool, err error) {
	if m == nil {
		return
	}
	m.records.Inc()
	if written {
		m.rowsWritten.Inc()
	}
	if err != nil {
		m.rowErrors.Inc()
	}
}

func (m *Metrics) ForwardError(forwarder string) {
	if m == nil {
		return
	}
	m.forwardErrors.WithLabelValues(forwarder).Inc()
}

func (m *Metrics) Reconnect(source string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(source).Inc()
}

func (m *Metrics) SinceLastTick(slot string, seconds float64) {
	if m == nil {
		return
	}
	m.sinceLastTick.WithLabelValues(slot).Set(seconds)
}
