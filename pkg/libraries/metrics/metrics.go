package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"strconv"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spillway",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spillway",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.002, 2, 12),
		},
		[]string{"method", "route", "status"},
	)

	tilesServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spillway",
			Name:      "tiles_served_total",
			Help:      "Tiles served by kind (vector, raster) and format.",
		},
		[]string{"kind", "format"},
	)

	tileFeatures = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "spillway",
			Name:      "tile_features",
			Help:      "Number of features encoded into a vector tile.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spillway",
			Name:      "tile_cache_results_total",
			Help:      "Tile cache lookups by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	featuresImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spillway",
			Name:      "features_imported_total",
			Help:      "Features written into a layer.",
		},
		[]string{"layer"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveTile(kind, format string, features int) {
	tilesServed.WithLabelValues(kind, format).Inc()
	if features >= 0 {
		tileFeatures.Observe(float64(features))
	}
}

func IncCacheHit(tier string) {
	cacheResults.WithLabelValues(tier, "hit").Inc()
}

func IncCacheMiss(tier string) {
	cacheResults.WithLabelValues(tier, "miss").Inc()
}

func AddFeaturesImported(layer string, n int) {
	featuresImported.WithLabelValues(layer).Add(float64(n))
}
