package metrics

import "github.com/prometheus/client_golang/prometheus"

// Delivery outcomes used as the outcome label.
const (
	DeliveryPublished = "published"
	DeliveryRetry     = "retry"
	DeliveryDropped   = "dropped"
)

// OutboxMetrics records what the relay did with each sale event it picked up.
type OutboxMetrics struct {
	deliveries *prometheus.CounterVec
	batches    prometheus.Counter
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_outbox_deliveries_total",
		Help: "Outbox events handled by the relay, by outcome.",
	}, []string{"outcome"})
	batches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_outbox_batch_errors_total",
		Help: "Relay batches aborted by a database error.",
	})
	reg.MustRegister(deliveries, batches)
	return &OutboxMetrics{deliveries: deliveries, batches: batches}
}

func (m *OutboxMetrics) Delivered(outcome string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
}

func (m *OutboxMetrics) BatchFailed() {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Inc()
}
