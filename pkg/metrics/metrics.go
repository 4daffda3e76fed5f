package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesObserved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relayer",
		Name:      "messages_observed_total",
		Help:      "Gateway messages observed on source chains.",
	}, []string{"chain"})

	MessagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relayer",
		Name:      "messages_relayed_total",
		Help:      "Messages delivered to their destination chain.",
	}, []string{"chain"})

	MessagesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relayer",
		Name:      "messages_failed_total",
		Help:      "Messages whose delivery failed after all retries.",
	}, []string{"chain"})

	MessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relayer",
		Name:      "messages_dropped_total",
		Help:      "Messages dropped because no sender serves their destination chain.",
	}, []string{"chain"})
)
