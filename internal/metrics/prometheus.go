package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink on the Prometheus client library.
// Registration errors are logged and the affected collector keeps working
// unregistered, so a duplicate registration can never take the service down.
type PrometheusSink struct {
	jobsSubmittedTotal prometheus.Counter
	jobsFinishedTotal  *prometheus.CounterVec

	iterationDuration prometheus.Histogram
	callsResolved     *prometheus.CounterVec
	callWaitDuration  prometheus.Histogram

	webhookDeliveries *prometheus.CounterVec
	webhookDuration   prometheus.Histogram
}

// NewPrometheusSink creates a sink registered against reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		jobsSubmittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ivrmap_jobs_submitted_total",
			Help: "Total number of exploration jobs accepted.",
		}),
		jobsFinishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ivrmap_jobs_finished_total",
			Help: "Total number of jobs reaching a terminal state, by status.",
		}, []string{"status"}),
		iterationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ivrmap_iteration_duration_seconds",
			Help:    "Duration of one exploration iteration, call wait included.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		callsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ivrmap_calls_resolved_total",
			Help: "Completion-handle resolutions, by outcome.",
		}, []string{"outcome"}),
		callWaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ivrmap_call_wait_duration_seconds",
			Help:    "Time spent awaiting a call-completion signal.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ivrmap_webhook_deliveries_total",
			Help: "Webhook delivery attempts, by response status class.",
		}, []string{"status_class"}),
		webhookDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ivrmap_webhook_duration_seconds",
			Help:    "Webhook request latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}

	for name, c := range map[string]prometheus.Collector{
		"ivrmap_jobs_submitted_total":          s.jobsSubmittedTotal,
		"ivrmap_jobs_finished_total":           s.jobsFinishedTotal,
		"ivrmap_iteration_duration_seconds":    s.iterationDuration,
		"ivrmap_calls_resolved_total":          s.callsResolved,
		"ivrmap_call_wait_duration_seconds":    s.callWaitDuration,
		"ivrmap_webhook_deliveries_total":      s.webhookDeliveries,
		"ivrmap_webhook_duration_seconds":      s.webhookDuration,
	} {
		if err := reg.Register(c); err != nil {
			slog.Warn("could not register metric", "name", name, "error", err)
		}
	}

	return s
}

func (s *PrometheusSink) JobSubmitted() {
	s.jobsSubmittedTotal.Inc()
}

func (s *PrometheusSink) JobFinished(status string) {
	s.jobsFinishedTotal.WithLabelValues(status).Inc()
}

func (s *PrometheusSink) IterationCompleted(duration time.Duration) {
	s.iterationDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) CallResolved(outcome string, waited time.Duration) {
	s.callsResolved.WithLabelValues(outcome).Inc()
	s.callWaitDuration.Observe(waited.Seconds())
}

func (s *PrometheusSink) WebhookDelivered(statusClass string, d time.Duration) {
	s.webhookDeliveries.WithLabelValues(statusClass).Inc()
	s.webhookDuration.Observe(d.Seconds())
}
