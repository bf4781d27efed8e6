package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the domain metric recorder on a Prometheus
// registry.
type PrometheusRecorder struct {
	jobsIngested *prometheus.CounterVec
	jobsStarted  prometheus.Counter
	jobsFinished *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	rulesApplied *prometheus.CounterVec
	exceptions   *prometheus.CounterVec
	approvals    *prometheus.CounterVec
}

// NewPrometheusRecorder registers the recorder's collectors on the given
// registry.
func NewPrometheusRecorder(registry *prometheus.Registry) *PrometheusRecorder {
	factory := promauto.With(registry)
	return &PrometheusRecorder{
		jobsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fluxgate",
			Name:      "jobs_ingested_total",
			Help:      "Jobs accepted by the ingestion gateway.",
		}, []string{"source_type"}),
		jobsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fluxgate",
			Name:      "jobs_started_total",
			Help:      "Jobs picked up by a worker.",
		}),
		jobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fluxgate",
			Name:      "jobs_finished_total",
			Help:      "Jobs reaching a terminal state.",
		}, []string{"status"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fluxgate",
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of finished job runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		rulesApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fluxgate",
			Name:      "rules_applied_total",
			Help:      "Successful single-rule applications.",
		}, []string{"rule_type"}),
		exceptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fluxgate",
			Name:      "exceptions_recorded_total",
			Help:      "Captured processing failures.",
		}, []string{"severity"}),
		approvals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fluxgate",
			Name:      "approvals_decided_total",
			Help:      "Terminal approval decisions.",
		}, []string{"state"}),
	}
}

func (r *PrometheusRecorder) JobIngested(sourceType string) {
	r.jobsIngested.WithLabelValues(sourceType).Inc()
}

func (r *PrometheusRecorder) JobStarted() {
	r.jobsStarted.Inc()
}

func (r *PrometheusRecorder) JobFinished(status string, duration time.Duration) {
	r.jobsFinished.WithLabelValues(status).Inc()
	r.jobDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) RuleApplied(ruleType string) {
	r.rulesApplied.WithLabelValues(ruleType).Inc()
}

func (r *PrometheusRecorder) ExceptionRecorded(severity string) {
	r.exceptions.WithLabelValues(severity).Inc()
}

func (r *PrometheusRecorder) ApprovalDecided(state string) {
	r.approvals.WithLabelValues(state).Inc()
}
