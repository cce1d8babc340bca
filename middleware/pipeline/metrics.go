package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"request-gate/middleware/ratelimit/domain"
	"request-gate/middleware/session"
)

const (
	outcomePassed      = "passed"
	outcomeRateLimited = "rate_limited"
	outcomeSignIn      = "sign_in_redirect"
)

// Metrics agrupa os coletores do pipeline. Um *Metrics nil é válido e não registra nada.
type Metrics struct {
	requests  *prometheus.CounterVec
	sessions  *prometheus.CounterVec
	remaining *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_requests_total",
				Help: "Requests seen by the gate pipeline, by route class and outcome",
			},
			[]string{"route", "outcome"},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_session_actions_total",
				Help: "Session refresh decisions taken by the gate pipeline",
			},
			[]string{"action"},
		),
		remaining: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gate_ratelimit_remaining",
				Help:    "Remaining quota reported by rate limit checks",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
			},
			[]string{"limiter"},
		),
	}

	for _, c := range []prometheus.Collector{m.requests, m.sessions, m.remaining} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) request(route Route, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route.Label(), outcome).Inc()
}

func (m *Metrics) session(a session.Action) {
	if m == nil || a == session.ActionNone {
		return
	}
	m.sessions.WithLabelValues(a.String()).Inc()
}

func (m *Metrics) quota(limiter string, res domain.Result) {
	if m == nil {
		return
	}
	m.remaining.WithLabelValues(limiter).Observe(float64(res.Remaining))
}
