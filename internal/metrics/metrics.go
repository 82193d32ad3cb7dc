// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts inbound requests by route and status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gather",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	// DegradedPages counts feed pages returned with the degraded flag set.
	DegradedPages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gather",
		Subsystem: "feed",
		Name:      "degraded_pages_total",
		Help:      "Feed pages assembled with at least one upstream failure.",
	})

	// CacheReads counts page-cache lookups by outcome: hit, stale or miss.
	CacheReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gather",
		Subsystem: "cache",
		Name:      "reads_total",
		Help:      "Feed cache reads by outcome.",
	}, []string{"outcome"})

	// UpstreamLatency observes outbound call durations per collaborator.
	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gather",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Outbound collaborator call durations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"collaborator"})

	// UpstreamErrors counts failed outbound calls per collaborator.
	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gather",
		Subsystem: "upstream",
		Name:      "errors_total",
		Help:      "Failed outbound collaborator calls.",
	}, []string{"collaborator", "kind"})
)
