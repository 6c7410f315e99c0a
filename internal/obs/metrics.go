package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	SessionChecks   *prometheus.CounterVec   // result=valid|expired|missing
	LoginTotal      *prometheus.CounterVec   // result=success|invalid
	DispatchTotal   *prometheus.CounterVec   // action, result=succeeded|failed|blocked|in_flight
	DispatchLatency *prometheus.HistogramVec // action
	InFlight        prometheus.Gauge
	CommitTotal     *prometheus.CounterVec // field=status|trust|wallet|delete|due, result=success|fail
	CooldownLoads   *prometheus.CounterVec // result=success|fail
}

// NewMetrics creates the console metrics and registers them on reg.
// A nil reg skips registration (tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_session_checks_total",
				Help: "Session validity checks by result",
			},
			[]string{"result"},
		),
		LoginTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_login_total",
				Help: "Operator login attempts by result",
			},
			[]string{"result"},
		),
		DispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_dispatch_total",
				Help: "Batch job dispatch attempts by action and result",
			},
			[]string{"action", "result"},
		),
		DispatchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "console_dispatch_latency_ms",
				Help:    "Latency of batch job trigger calls (ms)",
				Buckets: prometheus.ExponentialBuckets(5, 2, 12), // 5ms .. ~10s
			},
			[]string{"action"},
		),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "console_dispatch_in_flight",
			Help: "Number of batch job triggers currently in flight",
		}),
		CommitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_commit_total",
				Help: "Account and payment commits by field and result",
			},
			[]string{"field", "result"},
		),
		CooldownLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_cooldown_loads_total",
				Help: "Cooldown state loads from the backend by result",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.SessionChecks,
			m.LoginTotal,
			m.DispatchTotal,
			m.DispatchLatency,
			m.InFlight,
			m.CommitTotal,
			m.CooldownLoads,
		)
	}
	return m
}

// The helpers below tolerate a nil *Metrics so components can run without metrics.

func (m *Metrics) SessionCheck(result string) {
	if m == nil {
		return
	}
	m.SessionChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.LoginTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Dispatch(action, result string) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(action, result).Inc()
}

func (m *Metrics) DispatchStarted() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

func (m *Metrics) DispatchFinished(action string, took time.Duration) {
	if m == nil {
		return
	}
	m.InFlight.Dec()
	m.DispatchLatency.WithLabelValues(action).Observe(float64(took.Milliseconds()))
}

func (m *Metrics) Commit(field, result string) {
	if m == nil {
		return
	}
	m.CommitTotal.WithLabelValues(field, result).Inc()
}

func (m *Metrics) CooldownLoad(result string) {
	if m == nil {
		return
	}
	m.CooldownLoads.WithLabelValues(result).Inc()
}
