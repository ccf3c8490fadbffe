package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalogsync"

var (
	// Published counts producer outcomes: sent, dropped, failed.
	Published = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "broker",
		Name:      "published_total",
		Help:      "Events handed to the producer, by queue and outcome.",
	}, []string{"queue", "outcome"})

	// Deliveries counts consumer outcomes: acked, retried, dead_lettered.
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "broker",
		Name:      "deliveries_total",
		Help:      "Message deliveries, by queue and outcome.",
	}, []string{"queue", "outcome"})

	StockAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stock",
		Name:      "adjustments_total",
		Help:      "Stock ledger applications, by outcome.",
	}, []string{"outcome"})

	IndexOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "index_ops_total",
		Help:      "Search index mutations, by operation.",
	}, []string{"op"})
)

func MetricsHandler() http.Handler { return promhttp.Handler() }
