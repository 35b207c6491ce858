package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records maintenance job outcomes.
type JobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	deadLetters prometheus.Gauge
}

func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_job_runs_total",
		Help: "Maintenance job runs by job and result.",
	}, []string{"job", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_job_duration_seconds",
		Help:    "Maintenance job duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	deadLetters := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pos_outbox_dead_letters",
		Help: "Unpublished sale events that reached the attempt ceiling.",
	})
	reg.MustRegister(runs, duration, deadLetters)
	return &JobMetrics{runs: runs, duration: duration, deadLetters: deadLetters}
}

// Observe records one job run.
func (m *JobMetrics) Observe(job string, ok bool, d time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	job = normalizeLabel(job)
	m.runs.WithLabelValues(job, result).Inc()
	m.duration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *JobMetrics) SetDeadLetters(n int64) {
	if m == nil || m.deadLetters == nil {
		return
	}
	m.deadLetters.Set(float64(n))
}
