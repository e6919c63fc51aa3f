package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(outboxTasksTotal)
}

var outboxTasksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "outbox_tasks_total",
		Help: "Outbox task attempts by result (done/retry/dead).",
	},
	[]string{"result"},
)

func IncOutboxTask(result string) {
	outboxTasksTotal.WithLabelValues(norm(result)).Inc()
}
