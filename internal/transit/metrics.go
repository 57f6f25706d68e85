package transit

import "github.com/prometheus/client_golang/prometheus"

// DetectEvent summarises one detection run.
type DetectEvent struct {
	UserID         string
	Candidates     int
	Returned       int
	BySignificance map[Significance]int
	Degraded       string // empty unless upstream data was unavailable
	Duration       float64
}

// Hooks receives detection events. Nil fields are skipped.
type Hooks struct {
	OnDetect func(e *DetectEvent)
}

// Metrics holds Prometheus metrics for transit detection.
type Metrics struct {
	DetectionsTotal   *prometheus.CounterVec
	DetectionDuration prometheus.Histogram
	TransitsTotal     *prometheus.CounterVec
	Candidates        prometheus.Histogram
}

// NewMetrics registers and returns detection metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DetectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orrery_detections_total",
			Help: "Total detection runs by outcome.",
		}, []string{"outcome"}),
		DetectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orrery_detection_duration_seconds",
			Help:    "Duration of detection runs including upstream fetches.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}),
		TransitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orrery_transits_detected_total",
			Help: "Transits returned to callers by significance.",
		}, []string{"significance"}),
		Candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orrery_detection_candidates",
			Help:    "Candidate transits per run before filtering.",
			Buckets: prometheus.LinearBuckets(0, 2, 16), // 0 .. 30
		}),
	}

	reg.MustRegister(
		m.DetectionsTotal,
		m.DetectionDuration,
		m.TransitsTotal,
		m.Candidates,
	)
	return m
}

// Hooks returns detection hooks that update the metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnDetect: func(e *DetectEvent) {
			outcome := "ok"
			if e.Degraded != "" {
				outcome = e.Degraded
			}
			m.DetectionsTotal.WithLabelValues(outcome).Inc()
			m.DetectionDuration.Observe(e.Duration)
			if e.Degraded != "" {
				return
			}
			m.Candidates.Observe(float64(e.Candidates))
			for tier, n := range e.BySignificance {
				m.TransitsTotal.WithLabelValues(string(tier)).Add(float64(n))
			}
		},
	}
}
