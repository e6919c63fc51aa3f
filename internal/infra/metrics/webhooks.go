package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(webhooksTotal)
}

var webhooksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Inbound provider webhooks by outcome (applied/replay/invalid_signature/unknown_reference/...).",
	},
	[]string{"outcome"},
)

func IncWebhook(outcome string) {
	webhooksTotal.WithLabelValues(norm(outcome)).Inc()
}
