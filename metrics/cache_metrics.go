package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Endpoint directory cache metrics. Quick search resolves hostnames through
// the cache, so a low hit ratio points at an undersized endpoint_cache.size.

var (
	// EndpointCacheLookupsTotal counts endpoint lookups by result.
	// Labels:
	//   - result: "hit" or "miss"
	EndpointCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iochunt",
			Subsystem: "endpoint_cache",
			Name:      "lookups_total",
			Help:      "Endpoint directory cache lookups",
		},
		[]string{"result"},
	)

	// EndpointCacheSize tracks the number of cached endpoints.
	EndpointCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "iochunt",
			Subsystem: "endpoint_cache",
			Name:      "size",
			Help:      "Current number of cached endpoints",
		},
	)
)

// RecordEndpointCacheLookups records hits and misses of one batch lookup.
func RecordEndpointCacheLookups(hits, misses int) {
	if hits > 0 {
		EndpointCacheLookupsTotal.WithLabelValues("hit").Add(float64(hits))
	}
	if misses > 0 {
		EndpointCacheLookupsTotal.WithLabelValues("miss").Add(float64(misses))
	}
}

// UpdateEndpointCacheSize updates the cache size gauge.
func UpdateEndpointCacheSize(size int) {
	EndpointCacheSize.Set(float64(size))
}
