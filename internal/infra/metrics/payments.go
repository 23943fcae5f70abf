package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		subscriptionsTotal,
		pollsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment status transitions (pending/successful/failed/expired/refunded).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of successful payments in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	subscriptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_total",
			Help: "Subscription transitions (active/cancelled/expired).",
		},
		[]string{"status"},
	)

	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_polls_total",
			Help: "Poll outcomes (successful/failed/expired/timeout).",
		},
		[]string{"outcome"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amountMinor int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amountMinor))
}

func IncSubscription(status string) {
	subscriptionsTotal.WithLabelValues(norm(status)).Inc()
}

func IncPoll(outcome string) {
	pollsTotal.WithLabelValues(norm(outcome)).Inc()
}
