package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(webhookEventsTotal)
}

// A persistent "skipped" spike indicates a metadata-wiring defect upstream;
// the webhook handler itself always acks 200.
var webhookEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Webhook reconciliation outcomes (processed/duplicate/skipped).",
	},
	[]string{"outcome"},
)

func IncWebhook(outcome string) {
	webhookEventsTotal.WithLabelValues(norm(outcome)).Inc()
}
