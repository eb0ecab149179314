package swap

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts rate requests and their fate. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests  prometheus.Counter
	responses *prometheus.CounterVec
	expired   prometheus.Counter
}

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomeStale   = "stale"
)

// NewMetrics registers the swap counters on reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wallet_swap",
			Name:      "rate_requests_total",
			Help:      "Quote requests sent to the pricing service.",
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet_swap",
			Name:      "rate_responses_total",
			Help:      "Quote responses by outcome (success, error, stale).",
		}, []string{"outcome"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wallet_swap",
			Name:      "rates_expired_total",
			Help:      "Committed quotes dropped by the expiration manager.",
		}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.responses, m.expired} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) requestSent() {
	if m == nil {
		return
	}
	m.requests.Inc()
}

func (m *Metrics) response(outcome string) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(outcome).Inc()
}

func (m *Metrics) rateExpired() {
	if m == nil {
		return
	}
	m.expired.Inc()
}
