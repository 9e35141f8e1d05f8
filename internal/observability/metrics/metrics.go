package metrics

import "github.com/prometheus/client_golang/prometheus"

// FormMetrics exposes counters for the form workflow and its forward path.
type FormMetrics struct {
	submissionsTotal *prometheus.CounterVec
	validationsTotal *prometheus.CounterVec
	forwardTotal     *prometheus.CounterVec
	forwardLatency   prometheus.Histogram
}

func NewFormMetrics(reg prometheus.Registerer) *FormMetrics {
	m := &FormMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barberia",
			Subsystem: "forms",
			Name:      "submissions_total",
			Help:      "Form submissions by outcome",
		}, []string{"form", "outcome"}),
		validationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barberia",
			Subsystem: "forms",
			Name:      "field_validations_total",
			Help:      "Single field validations by result",
		}, []string{"form", "field", "result"}),
		forwardTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barberia",
			Subsystem: "forms",
			Name:      "forward_total",
			Help:      "Submissions forwarded to the remote endpoint",
		}, []string{"status"}),
		forwardLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "barberia",
			Subsystem: "forms",
			Name:      "forward_latency_seconds",
			Help:      "Latency of submission forwarding calls",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.validationsTotal, m.forwardTotal, m.forwardLatency)
	return m
}

func (m *FormMetrics) ObserveSubmission(form, outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(form, outcome).Inc()
}

func (m *FormMetrics) ObserveFieldValidation(form, field string, valid bool) {
	if m == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.validationsTotal.WithLabelValues(form, field, result).Inc()
}

func (m *FormMetrics) ObserveForward(status string, seconds float64) {
	if m == nil {
		return
	}
	m.forwardTotal.WithLabelValues(status).Inc()
	m.forwardLatency.Observe(seconds)
}
