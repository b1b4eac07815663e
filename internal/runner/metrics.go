package runner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsPrefix = "probe_"

const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
	outcomeCanceled  = "canceled"
)

// Metrics records what runs did. A nil *Metrics records nothing.
type Metrics struct {
	experiments        *prometheus.CounterVec
	experimentDuration *prometheus.HistogramVec
	submissions        *prometheus.CounterVec
	submitRetries      prometheus.Counter
}

// NewMetrics creates the runner metrics and registers them with reg, if reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		experiments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "experiments_total",
				Help: "Number of experiments run, by outcome",
			},
			[]string{"suite", "experiment", "outcome"},
		),
		experimentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricsPrefix + "experiment_duration_seconds",
				Help:    "Time taken to run an experiment and submit its measurements",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"experiment"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "submissions_total",
				Help: "Number of measurement submissions, by outcome",
			},
			[]string{"outcome"},
		),
		submitRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricsPrefix + "submit_retries_total",
				Help: "Number of times a submission was retried",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.experiments, m.experimentDuration, m.submissions, m.submitRetries)
	}
	return m
}

func (m *Metrics) recordExperiment(suite, experiment, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.experiments.WithLabelValues(suite, experiment, outcome).Inc()
	m.experimentDuration.WithLabelValues(experiment).Observe(duration.Seconds())
}

// recordSkippedExperiment counts an experiment that never ran. No duration is observed for it.
func (m *Metrics) recordSkippedExperiment(suite, experiment string) {
	if m == nil {
		return
	}
	m.experiments.WithLabelValues(suite, experiment, outcomeCanceled).Inc()
}

func (m *Metrics) recordSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recordSubmitRetry() {
	if m == nil {
		return
	}
	m.submitRetries.Inc()
}
