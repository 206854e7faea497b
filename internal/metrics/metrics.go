package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsinsight_completions_total",
			Help: "Total number of completion calls",
		},
		[]string{"variant", "status"},
	)

	IntentsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsinsight_intents_detected_total",
			Help: "Total number of intents detected in prompts",
		},
		[]string{"intent"},
	)

	RequestsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsinsight_requests_rejected_total",
			Help: "Total number of requests rejected before dispatch",
		},
		[]string{"code"},
	)

	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsinsight_dispatch_total",
			Help: "Total number of dispatched actions by outcome",
		},
		[]string{"kind", "status"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsinsight_dispatch_duration_seconds",
			Help:    "Duration of dispatched actions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	DispatchActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "opsinsight_dispatch_active",
			Help: "Number of dispatched actions currently running",
		},
		[]string{"kind"},
	)
)
