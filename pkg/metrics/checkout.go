package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records outcomes of the checkout pipeline.
type CheckoutMetrics struct {
	duration *prometheus.HistogramVec
	orders   prometheus.Counter
	failures *prometheus.CounterVec
}

// NewCheckoutMetrics registers checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout executions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	orders := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_orders_created_total",
		Help: "Vendor orders created by successful checkouts.",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failures_total",
		Help: "Checkout failures by error code.",
	}, []string{"code"})
	reg.MustRegister(duration, orders, failures)
	return &CheckoutMetrics{
		duration: duration,
		orders:   orders,
		failures: failures,
	}
}

// ObserveDuration records how long a checkout took.
func (c *CheckoutMetrics) ObserveDuration(outcome string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// AddOrders counts orders produced by a successful checkout.
func (c *CheckoutMetrics) AddOrders(count int) {
	if c == nil || c.orders == nil || count <= 0 {
		return
	}
	c.orders.Add(float64(count))
}

// IncFailure counts a checkout failure by error code.
func (c *CheckoutMetrics) IncFailure(code string) {
	if c == nil || c.failures == nil {
		return
	}
	c.failures.WithLabelValues(normalizeLabel(code)).Inc()
}

// OutboxMetrics records publisher drain outcomes.
type OutboxMetrics struct {
	published prometheus.Counter
	failed    prometheus.Counter
}

// NewOutboxMetrics registers outbox metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events successfully published.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_failed_total",
		Help: "Outbox publish attempts that failed.",
	})
	reg.MustRegister(published, failed)
	return &OutboxMetrics{published: published, failed: failed}
}

// IncPublished counts a successful publish.
func (o *OutboxMetrics) IncPublished() {
	if o == nil || o.published == nil {
		return
	}
	o.published.Inc()
}

// IncFailed counts a failed publish attempt.
func (o *OutboxMetrics) IncFailed() {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
