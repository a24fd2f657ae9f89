package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhooksReceived,
		webhookSignatureFailures,
		webhooksEnqueued,
		webhookRetries,
		webhookQueueTerminal,
		webhookQueueExpired,
	)
}

var (
	webhooksReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_received_total",
			Help: "Inbound webhook deliveries by gateway and outcome (processed/duplicate/enqueued/rejected).",
		},
		[]string{"gateway", "outcome"},
	)

	webhookSignatureFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_signature_failures_total",
			Help: "Webhook deliveries rejected for an invalid signature.",
		},
		[]string{"gateway"},
	)

	webhooksEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_queue_enqueued_total",
			Help: "Webhook events enqueued for retry after an inline failure.",
		},
		[]string{"gateway"},
	)

	webhookRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_retries_total",
			Help: "Retry attempts by gateway and outcome (completed/rescheduled/failed).",
		},
		[]string{"gateway", "outcome"},
	)

	webhookQueueTerminal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_queue_terminal_total",
			Help: "Queue items reaching a terminal state (completed/failed/expired).",
		},
		[]string{"status"},
	)

	webhookQueueExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_queue_expired_sweep_total",
			Help: "Queue items swept to expired by the scheduler.",
		},
	)
)

func IncWebhookReceived(gateway, outcome string) {
	webhooksReceived.WithLabelValues(norm(gateway), norm(outcome)).Inc()
}

func IncWebhookSignatureFailure(gateway string) {
	webhookSignatureFailures.WithLabelValues(norm(gateway)).Inc()
}

func IncWebhookEnqueued(gateway string) {
	webhooksEnqueued.WithLabelValues(norm(gateway)).Inc()
}

func IncWebhookRetry(gateway, outcome string) {
	webhookRetries.WithLabelValues(norm(gateway), norm(outcome)).Inc()
}

func IncWebhookTerminal(status string) {
	webhookQueueTerminal.WithLabelValues(norm(status)).Inc()
}

func AddWebhookExpired(n int64) {
	webhookQueueExpired.Add(float64(n))
}
