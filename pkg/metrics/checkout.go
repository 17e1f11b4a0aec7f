package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records outcomes of checkout handoffs to the payment gateway.
type CheckoutMetrics struct {
	duration     *prometheus.HistogramVec
	started      *prometheus.CounterVec
	completed    *prometheus.CounterVec
	failed       *prometheus.CounterVec
	badSignature prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Time between checkout begin and its terminal outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	started := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_started",
		Help: "Checkout sessions opened.",
	}, []string{"method"})
	completed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_completed",
		Help: "Checkout sessions that produced a confirmed order.",
	}, []string{"method"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failed",
		Help: "Checkout sessions that ended in a gateway failure or abandonment.",
	}, []string{"method"})
	badSignature := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_invalid_signature",
		Help: "Payment callbacks rejected for a bad gateway signature.",
	})
	reg.MustRegister(duration, started, completed, failed, badSignature)
	return &CheckoutMetrics{
		duration:     duration,
		started:      started,
		completed:    completed,
		failed:       failed,
		badSignature: badSignature,
	}
}

// ObserveDuration records how long a checkout took for the payment method.
func (c *CheckoutMetrics) ObserveDuration(method string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(method)).Observe(duration.Seconds())
}

// IncStarted increments the started counter for the payment method.
func (c *CheckoutMetrics) IncStarted(method string) {
	if c == nil || c.started == nil {
		return
	}
	c.started.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncCompleted increments the completed counter for the payment method.
func (c *CheckoutMetrics) IncCompleted(method string) {
	if c == nil || c.completed == nil {
		return
	}
	c.completed.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncFailed increments the failure counter for the payment method.
func (c *CheckoutMetrics) IncFailed(method string) {
	if c == nil || c.failed == nil {
		return
	}
	c.failed.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncInvalidSignature counts a callback rejected for signature mismatch.
func (c *CheckoutMetrics) IncInvalidSignature() {
	if c == nil || c.badSignature == nil {
		return
	}
	c.badSignature.Inc()
}

func normalizeLabel(method string) string {
	if method == "" {
		return "unknown"
	}
	return method
}
