package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Webhook delivery outcomes.
const (
	WebhookOutcomeDelivered   = "delivered"
	WebhookOutcomeFailed      = "failed"
	WebhookOutcomeSkipped     = "skipped"
	WebhookOutcomeBreakerOpen = "breaker_open"
)

// WebhookMetrics tracks calls made to the automation engine webhooks.
type WebhookMetrics struct {
	deliveries *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Webhook notification attempts by target and outcome.",
	}, []string{"target", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_delivery_duration_seconds",
		Help:    "Latency of webhook notification requests.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"target"})
	reg.MustRegister(deliveries, duration)
	return &WebhookMetrics{deliveries: deliveries, duration: duration}
}

// IncOutcome counts one notification outcome for target.
func (w *WebhookMetrics) IncOutcome(target, outcome string) {
	if w == nil || w.deliveries == nil {
		return
	}
	w.deliveries.WithLabelValues(normalizeLabel(target), normalizeLabel(outcome)).Inc()
}

// ObserveDuration records the latency of a single HTTP attempt.
func (w *WebhookMetrics) ObserveDuration(target string, d time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(target)).Observe(d.Seconds())
}
