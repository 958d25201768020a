package host

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records guest call activity. A nil *Metrics records nothing.
type Metrics struct {
	calls     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	instances prometheus.Gauge
}

// NewMetrics creates the host collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "msgwire",
			Subsystem: "host",
			Name:      "calls_total",
			Help:      "Guest function calls by function and outcome.",
		}, []string{"function", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "msgwire",
			Subsystem: "host",
			Name:      "call_duration_seconds",
			Help:      "Wall-clock duration of guest function calls.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"function"}),
		instances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "msgwire",
			Subsystem: "host",
			Name:      "instances",
			Help:      "Live guest instances held by pools.",
		}),
	}
	reg.MustRegister(m.calls, m.duration, m.instances)
	return m
}

func (m *Metrics) observeCall(function string, d time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(function, outcome).Inc()
	m.duration.WithLabelValues(function).Observe(d.Seconds())
}

func (m *Metrics) instanceDelta(n int) {
	if m == nil {
		return
	}
	m.instances.Add(float64(n))
}
