package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Confirmation outcomes recorded by the contribution state machine.
const (
	ConfirmApplied     = "applied"
	ConfirmAlreadyPaid = "already_paid"
	ConfirmCancelled   = "cancelled"
	ConfirmDuplicate   = "duplicate"
	ConfirmRaceLost    = "race_lost"
)

// FundingMetrics records reconciliation and payout activity. A nil receiver or
// one built without a registerer is a no-op so services never need guards.
type FundingMetrics struct {
	confirmations   *prometheus.CounterVec
	amountMismatch  prometheus.Counter
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	payouts         *prometheus.CounterVec
	notifyFailures  prometheus.Counter
	webhookEvents   *prometheus.CounterVec
}

// NewFundingMetrics registers the funding metrics on the provided registerer.
func NewFundingMetrics(reg prometheus.Registerer) *FundingMetrics {
	if reg == nil {
		return &FundingMetrics{}
	}
	m := &FundingMetrics{
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contribution_confirmations_total",
			Help: "Contribution confirm attempts by outcome.",
		}, []string{"outcome"}),
		amountMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contribution_confirmed_amount_mismatch_total",
			Help: "Confirmations whose provider amount differed from the pledged amount.",
		}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_provider_calls_total",
			Help: "Payment provider calls by operation and result.",
		}, []string{"op", "result"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payment_provider_call_duration_seconds",
			Help:    "Payment provider call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "project_payout_transitions_total",
			Help: "Payout state transitions.",
		}, []string{"transition"}),
		notifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payout_notification_failures_total",
			Help: "Payout notifications that could not be delivered.",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provider_webhook_events_total",
			Help: "Provider webhook deliveries by event type and result.",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(
		m.confirmations,
		m.amountMismatch,
		m.providerCalls,
		m.providerLatency,
		m.payouts,
		m.notifyFailures,
		m.webhookEvents,
	)
	return m
}

func (m *FundingMetrics) IncConfirmation(outcome string) {
	if m == nil || m.confirmations == nil {
		return
	}
	m.confirmations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *FundingMetrics) IncAmountMismatch() {
	if m == nil || m.amountMismatch == nil {
		return
	}
	m.amountMismatch.Inc()
}

// ObserveProviderCall records one outbound provider call.
func (m *FundingMetrics) ObserveProviderCall(op string, started time.Time, err error) {
	if m == nil || m.providerCalls == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.providerCalls.WithLabelValues(normalizeLabel(op), result).Inc()
	m.providerLatency.WithLabelValues(normalizeLabel(op)).Observe(time.Since(started).Seconds())
}

func (m *FundingMetrics) IncPayoutTransition(transition string) {
	if m == nil || m.payouts == nil {
		return
	}
	m.payouts.WithLabelValues(normalizeLabel(transition)).Inc()
}

func (m *FundingMetrics) IncNotificationFailure() {
	if m == nil || m.notifyFailures == nil {
		return
	}
	m.notifyFailures.Inc()
}

func (m *FundingMetrics) IncWebhookEvent(eventType, result string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
