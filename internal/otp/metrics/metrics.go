package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts OTP sends and verifications. A nil *Metrics records nothing.
type Metrics struct {
	Sends         *prometheus.CounterVec
	Verifications *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Sends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wishguard_otp_sends_total",
			Help: "OTP sends by result",
		}, []string{"result"}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wishguard_otp_verifications_total",
			Help: "OTP verification attempts by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveSend(result string) {
	if m == nil {
		return
	}
	m.Sends.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveVerification(result string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(result).Inc()
}
