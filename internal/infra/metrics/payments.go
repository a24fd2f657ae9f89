package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		creditsGranted,
		transactionsRecorded,
		refundsTotal,
		suspensionsTotal,
		reconcileTotal,
		configErrorsTotal,
		cacheRequests,
	)
}

var (
	creditsGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_granted_total",
			Help: "Credits applied to user balances by gateway.",
		},
		[]string{"gateway"},
	)

	transactionsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transactions_total",
			Help: "Payment transactions recorded, by gateway and type.",
		},
		[]string{"gateway", "type"},
	)

	refundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refunds_total",
			Help: "Refunds applied, by gateway and reason (gateway_refund/chargeback).",
		},
		[]string{"gateway", "reason"},
	)

	suspensionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "account_suspensions_total",
			Help: "Accounts suspended by chargeback handling.",
		},
	)

	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_reconcile_total",
			Help: "Subscription reconciliations by resulting canonical status.",
		},
		[]string{"status"},
	)

	configErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_config_errors_total",
			Help: "Fatal configuration errors surfaced to operators (e.g. missing free-tier model).",
		},
		[]string{"kind"},
	)

	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_cache_requests_total",
			Help: "Cache decorator lookups by entity and result (hit/miss).",
		},
		[]string{"entity", "result"},
	)
)

func AddCreditsGranted(gateway string, credits int64) {
	creditsGranted.WithLabelValues(norm(gateway)).Add(float64(credits))
}

func IncTransaction(gateway, typ string) {
	transactionsRecorded.WithLabelValues(norm(gateway), norm(typ)).Inc()
}

func IncRefund(gateway, reason string) {
	refundsTotal.WithLabelValues(norm(gateway), norm(reason)).Inc()
}

func IncSuspension() { suspensionsTotal.Inc() }

func IncReconcile(status string) {
	reconcileTotal.WithLabelValues(norm(status)).Inc()
}

func IncConfigError(kind string) {
	configErrorsTotal.WithLabelValues(norm(kind)).Inc()
}

func IncCacheRequest(entity, result string) {
	cacheRequests.WithLabelValues(norm(entity), norm(result)).Inc()
}
