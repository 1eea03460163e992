// Package metric exposes Prometheus instrumentation for the client. All
// methods are nil-safe so instrumentation stays optional: a nil *Metrics is
// a no-op.
package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the client-level collectors.
type Metrics struct {
	ConnectionStatus  prometheus.Gauge
	EventsApplied     prometheus.Counter
	ReconnectAttempts prometheus.Counter
	CallDuration      *prometheus.HistogramVec
	CallErrors        *prometheus.CounterVec
}

// New creates the collector set. Call Register to attach it to a registry.
func New() *Metrics {
	return &Metrics{
		ConnectionStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hass",
			Subsystem: "connection",
			Name:      "status",
			Help:      "Connection status (0=disconnected, 1=connected)",
		}),
		EventsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hass",
			Subsystem: "store",
			Name:      "events_applied_total",
			Help:      "Total number of state change events applied to the store",
		}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hass",
			Subsystem: "connection",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of reconnection attempts",
		}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hass",
			Subsystem: "service",
			Name:      "call_duration_seconds",
			Help:      "Service call round-trip duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"domain", "service"}),
		CallErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hass",
			Subsystem: "service",
			Name:      "call_errors_total",
			Help:      "Total number of failed service calls by error kind",
		}, []string{"kind"}),
	}
}

// Register attaches every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.ConnectionStatus,
		m.EventsApplied,
		m.ReconnectAttempts,
		m.CallDuration,
		m.CallErrors,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// SetConnected records the connection status.
func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.ConnectionStatus.Set(1)
	} else {
		m.ConnectionStatus.Set(0)
	}
}

// IncEventsApplied counts one applied state change.
func (m *Metrics) IncEventsApplied() {
	if m == nil {
		return
	}
	m.EventsApplied.Inc()
}

// IncReconnectAttempts counts one reconnection attempt.
func (m *Metrics) IncReconnectAttempts() {
	if m == nil {
		return
	}
	m.ReconnectAttempts.Inc()
}

// ObserveCall records the duration and outcome of one service call.
func (m *Metrics) ObserveCall(domain, service string, d time.Duration, errKind string) {
	if m == nil {
		return
	}
	m.CallDuration.WithLabelValues(domain, service).Observe(d.Seconds())
	if errKind != "" {
		m.CallErrors.WithLabelValues(errKind).Inc()
	}
}
