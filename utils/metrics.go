// utils/metrics.go
package utils

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	StatusTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_application_transitions_total",
		Help: "Application status transitions.",
	}, []string{"from", "to"})

	ActiveSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_active_subscriptions",
		Help: "Live event subscriptions (SSE streams).",
	})

	CardRepairsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_card_repairs_total",
		Help: "Card records repaired by the reconciler.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestTotal,
		HTTPRequestDurationSeconds,
		StatusTransitionsTotal,
		ActiveSubscriptions,
		CardRepairsTotal,
	)
}
