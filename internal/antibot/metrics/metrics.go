package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds anti-bot counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Decisions      *prometheus.CounterVec
	IPBlocks       prometheus.Counter
	Honeypot       prometheus.Counter
	Captcha        *prometheus.CounterVec
	BotProbability prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wishguard_antibot_decisions_total",
			Help: "Aggregate bot-check decisions by outcome (allow, captcha, block)",
		}, []string{"outcome"}),
		IPBlocks: f.NewCounter(prometheus.CounterOpts{
			Name: "wishguard_antibot_ip_blocks_total",
			Help: "IPs automatically blocked after crossing the risk threshold",
		}),
		Honeypot: f.NewCounter(prometheus.CounterOpts{
			Name: "wishguard_antibot_honeypot_total",
			Help: "Requests rejected because a honeypot field was filled",
		}),
		Captcha: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wishguard_captcha_verifications_total",
			Help: "CAPTCHA verification attempts by result",
		}, []string{"result"}),
		BotProbability: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "wishguard_antibot_bot_probability",
			Help:    "Distribution of behavior-derived bot probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
}

func (m *Metrics) ObserveDecision(outcome string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementIPBlocks() {
	if m == nil {
		return
	}
	m.IPBlocks.Inc()
}

func (m *Metrics) IncrementHoneypot() {
	if m == nil {
		return
	}
	m.Honeypot.Inc()
}

func (m *Metrics) ObserveCaptcha(result string) {
	if m == nil {
		return
	}
	m.Captcha.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveBotProbability(p float64) {
	if m == nil {
		return
	}
	m.BotProbability.Observe(p)
}
