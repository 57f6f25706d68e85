package alert

import "github.com/prometheus/client_golang/prometheus"

// ProviderCallEvent describes one call to the text generation provider.
type ProviderCallEvent struct {
	Model       string
	TokensTotal int
	CostTotal   float64
	Duration    float64
	Failed      bool
}

// GenerateEvent describes one Generate call that got past validation.
type GenerateEvent struct {
	UserID         string
	Kind           ContentKind
	Severity       string
	FallbackReason string
	Persisted      bool
	Duration       float64
}

// BatchEvent describes one GenerateBatch call.
type BatchEvent struct {
	UserID    string
	Requested int
	Produced  int
	Failed    int
	Duration  float64
}

// Hooks receives generation events. Nil fields are skipped.
type Hooks struct {
	OnProviderCall func(e *ProviderCallEvent)
	OnGenerate     func(e *GenerateEvent)
	OnBatch        func(e *BatchEvent)
}

// Metrics holds Prometheus metrics for alert generation.
type Metrics struct {
	ProviderCallsTotal *prometheus.CounterVec
	ProviderTokens     prometheus.Counter
	ProviderCost       prometheus.Counter
	ProviderDuration   prometheus.Histogram
	AlertsTotal        *prometheus.CounterVec
	FallbacksTotal     *prometheus.CounterVec
	GenerateDuration   prometheus.Histogram
	BatchItemsTotal    *prometheus.CounterVec
}

// NewMetrics registers and returns alert metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProviderCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orrery_llm_calls_total",
			Help: "Total text generation calls by status.",
		}, []string{"status"}),
		ProviderTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orrery_llm_tokens_total",
			Help: "Total tokens reported by the text generation provider.",
		}),
		ProviderCost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orrery_llm_cost_total",
			Help: "Total cost reported by the text generation provider.",
		}),
		ProviderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orrery_llm_call_duration_seconds",
			Help:    "Duration of individual text generation calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s .. ~32s
		}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orrery_alerts_generated_total",
			Help: "Alerts generated by content source and severity.",
		}, []string{"source", "severity"}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orrery_alert_fallbacks_total",
			Help: "Alerts that used fallback copy, by reason.",
		}, []string{"reason"}),
		GenerateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orrery_alert_generate_duration_seconds",
			Help:    "Duration of single alert generation including persistence.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		}),
		BatchItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orrery_alert_batch_items_total",
			Help: "Batch items by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.ProviderCallsTotal,
		m.ProviderTokens,
		m.ProviderCost,
		m.ProviderDuration,
		m.AlertsTotal,
		m.FallbacksTotal,
		m.GenerateDuration,
		m.BatchItemsTotal,
	)
	return m
}

// Hooks returns generation hooks that update the metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnProviderCall: func(e *ProviderCallEvent) {
			status := "success"
			if e.Failed {
				status = "error"
			}
			m.ProviderCallsTotal.WithLabelValues(status).Inc()
			m.ProviderTokens.Add(float64(e.TokensTotal))
			m.ProviderCost.Add(e.CostTotal)
			m.ProviderDuration.Observe(e.Duration)
		},
		OnGenerate: func(e *GenerateEvent) {
			m.GenerateDuration.Observe(e.Duration)
			if !e.Persisted {
				return
			}
			m.AlertsTotal.WithLabelValues(string(e.Kind), e.Severity).Inc()
			if e.Kind == KindFallback {
				m.FallbacksTotal.WithLabelValues(e.FallbackReason).Inc()
			}
		},
		OnBatch: func(e *BatchEvent) {
			m.BatchItemsTotal.WithLabelValues("produced").Add(float64(e.Produced))
			m.BatchItemsTotal.WithLabelValues("failed").Add(float64(e.Failed))
		},
	}
}
