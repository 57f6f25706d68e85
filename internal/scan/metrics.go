package scan

import "github.com/prometheus/client_golang/prometheus"

// RunEvent summarises one completed scan run.
type RunEvent struct {
	Users    int
	Transits int
	Alerts   int
	Failed   int
	Err      error
	Duration float64
}

// Hooks receives scan events. Nil fields are skipped.
type Hooks struct {
	OnRun func(e *RunEvent)
}

// Metrics holds Prometheus metrics for the daily scan.
type Metrics struct {
	RunsTotal   *prometheus.CounterVec
	UsersTotal  *prometheus.CounterVec
	AlertsTotal prometheus.Counter
	RunDuration prometheus.Histogram
}

// NewMetrics registers and returns scan metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orrery_scan_runs_total",
			Help: "Scan runs by outcome.",
		}, []string{"outcome"}),
		UsersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orrery_scan_users_total",
			Help: "Users processed by scan runs.",
		}, []string{"result"}),
		AlertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orrery_scan_alerts_total",
			Help: "Alerts produced by scan runs.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orrery_scan_duration_seconds",
			Help:    "Wall time of scan runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s .. ~2h
		}),
	}

	reg.MustRegister(m.RunsTotal, m.UsersTotal, m.AlertsTotal, m.RunDuration)
	return m
}

// Hooks returns scan hooks that update the metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnRun: func(e *RunEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			m.RunsTotal.WithLabelValues(outcome).Inc()
			m.UsersTotal.WithLabelValues("ok").Add(float64(e.Users - e.Failed))
			m.UsersTotal.WithLabelValues("failed").Add(float64(e.Failed))
			m.AlertsTotal.Add(float64(e.Alerts))
			m.RunDuration.Observe(e.Duration)
		},
	}
}
