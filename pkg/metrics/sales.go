package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sale failure reasons used as the reason label.
const (
	SaleFailureValidation        = "validation"
	SaleFailureNotFound          = "not_found"
	SaleFailureInsufficientStock = "insufficient_stock"
	SaleFailureInternal          = "internal"
)

// SaleMetrics records outcomes of the sale transaction.
type SaleMetrics struct {
	attempts prometheus.Counter
	success  prometheus.Counter
	failures *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewSaleMetrics registers the sale metrics on the provided registerer.
func NewSaleMetrics(reg prometheus.Registerer) *SaleMetrics {
	if reg == nil {
		return &SaleMetrics{}
	}
	attempts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_sale_attempts_total",
		Help: "Sale creation attempts.",
	})
	success := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_sale_success_total",
		Help: "Committed sales.",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sale_failures_total",
		Help: "Rejected or failed sales by reason.",
	}, []string{"reason"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_sale_duration_seconds",
		Help:    "Time spent processing a sale, including the transaction.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(attempts, success, failures, duration)
	return &SaleMetrics{
		attempts: attempts,
		success:  success,
		failures: failures,
		duration: duration,
	}
}

// IncAttempt counts a sale request that reached the processor.
func (m *SaleMetrics) IncAttempt() {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.Inc()
}

// IncSuccess counts a committed sale.
func (m *SaleMetrics) IncSuccess() {
	if m == nil || m.success == nil {
		return
	}
	m.success.Inc()
}

// IncFailure counts a failed sale under reason.
func (m *SaleMetrics) IncFailure(reason string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveDuration records how long the sale took.
func (m *SaleMetrics) ObserveDuration(d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
