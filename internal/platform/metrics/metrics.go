package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// Services take a *Metrics that may be nil (tests pass nil), so every
// increment goes through a nil-guarded method.
type Metrics struct {
	CodesIssued          prometheus.Counter
	CodeValidations      *prometheus.CounterVec
	RegistrationsCreated prometheus.Counter
	RegistrationsUpdated prometheus.Counter
	FlowsTerminal        *prometheus.CounterVec
	SubmitDuration       prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CodesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatepass_codes_issued_total",
			Help: "Total number of one-time codes issued",
		}),
		CodeValidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatepass_code_validations_total",
			Help: "One-time code validation attempts by outcome",
		}, []string{"outcome"}),
		RegistrationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatepass_registrations_created_total",
			Help: "Total number of registrations created",
		}),
		RegistrationsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatepass_registrations_updated_total",
			Help: "Total number of registrations updated via upsert",
		}),
		FlowsTerminal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatepass_flows_terminal_total",
			Help: "Registration flows reaching a terminal state, by state",
		}, []string{"state"}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatepass_submit_duration_seconds",
			Help:    "Latency of registration submission including storage round-trips",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncCodesIssued() {
	if m != nil {
		m.CodesIssued.Inc()
	}
}

func (m *Metrics) IncCodeValidation(outcome string) {
	if m != nil {
		m.CodeValidations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncRegistrationsCreated(n int) {
	if m != nil {
		m.RegistrationsCreated.Add(float64(n))
	}
}

func (m *Metrics) IncRegistrationsUpdated() {
	if m != nil {
		m.RegistrationsUpdated.Inc()
	}
}

func (m *Metrics) IncFlowTerminal(state string) {
	if m != nil {
		m.FlowsTerminal.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) ObserveSubmitDuration(d time.Duration) {
	if m != nil {
		m.SubmitDuration.Observe(d.Seconds())
	}
}
