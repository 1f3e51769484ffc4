// Package metrics exposes the cascade's cache events as Prometheus
// instrumentation: a counter per (provider, event kind) and a latency
// histogram per (provider, event kind).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imageflow/cascade/internal/cache"
)

var (
	cacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cascade",
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Count of cache events by provider and kind.",
		},
		[]string{"provider", "kind"},
	)
	cacheLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cascade",
			Subsystem: "cache",
			Name:      "event_latency_seconds",
			Help:      "Latency of cache provider operations, in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "kind"},
	)
)

func init() {
	prometheus.MustRegister(cacheEvents, cacheLatency)
}

// Observer returns a cache.Observer that records every emitted event as
// Prometheus counters and histograms. Wire it into a cascade by including
// it in cache.CascadeConfig.Observers.
func Observer() cache.Observer {
	return func(evt cache.Event) {
		provider := evt.ProviderName
		if provider == "" {
			provider = "cascade"
		}
		kind := evt.Kind.String()
		cacheEvents.WithLabelValues(provider, kind).Inc()
		if evt.Latency > 0 {
			cacheLatency.WithLabelValues(provider, kind).Observe(evt.Latency.Seconds())
		}
	}
}

// Handler returns the http.Handler serving /metrics in Prometheus exposition
// format, for mounting on the metrics listener configured by
// config.MetricsConfig.
func Handler() http.Handler {
	return promhttp.Handler()
}
