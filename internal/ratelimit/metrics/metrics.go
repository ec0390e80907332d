package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds rate limiter instruments. A nil *Metrics records nothing.
type Metrics struct {
	Rejections *prometheus.CounterVec
	Errors     prometheus.Counter
	Degraded   prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wishguard_ratelimit_rejections_total",
			Help: "Requests rejected by a rate limit, by action",
		}, []string{"action"}),
		Errors: f.NewCounter(prometheus.CounterOpts{
			Name: "wishguard_ratelimit_errors_total",
			Help: "Counter store failures that let a request through unlimited",
		}),
		Degraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "wishguard_ratelimit_degraded",
			Help: "1 while counters are served from the in-memory fallback",
		}),
	}
}

func (m *Metrics) IncrementRejections(action string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementErrors() {
	if m == nil {
		return
	}
	m.Errors.Inc()
}

func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.Degraded.Set(1)
		return
	}
	m.Degraded.Set(0)
}
