package query

import "github.com/prometheus/client_golang/prometheus"

var (
	commandCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idvault",
			Subsystem: "query",
			Name:      "commands_total",
			Help:      "Counter of dispatched commands.",
		}, []string{"service", "verb", "status"})

	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "idvault",
			Subsystem: "query",
			Name:      "command_duration_seconds",
			Help:      "Bucketed histogram of command handling time (s).",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 13),
		}, []string{"service"})
)

func init() {
	prometheus.MustRegister(commandCounter)
	prometheus.MustRegister(commandDuration)
}
