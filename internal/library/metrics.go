package library

import "github.com/prometheus/client_golang/prometheus"

var (
	listings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "looplib_library_listings_total",
			Help: "Library listings by outcome (hit, miss, error)",
		},
		[]string{"status"},
	)
	metadataFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "looplib_metadata_fetches_total",
			Help: "Metadata document fetches by outcome",
		},
		[]string{"status"},
	)
	deletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "looplib_deletions_total",
			Help: "Object deletions by kind and outcome",
		},
		[]string{"kind", "status"},
	)
	listDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "looplib_library_list_duration_seconds",
			Help:    "Time spent listing and pairing a user's bucket prefix",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(listings, metadataFetches, deletions, listDuration)
}
