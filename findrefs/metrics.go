package findrefs

import "github.com/prometheus/client_golang/prometheus"

var (
	searchCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "refsearch",
		Subsystem: "findrefs",
		Name:      "searches_total",
		Help:      "Number of reference searches by outcome.",
	}, []string{"outcome"})
	searchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "refsearch",
		Subsystem: "findrefs",
		Name:      "search_duration_seconds",
		Help:      "Time spent in FindReferences.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})
	indexBuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "refsearch",
		Subsystem: "findrefs",
		Name:      "index_builds_total",
		Help:      "Number of document index entries built.",
	})
	indexHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "refsearch",
		Subsystem: "findrefs",
		Name:      "index_hits_total",
		Help:      "Number of document index lookups served from cache.",
	})
	documentsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "refsearch",
		Subsystem: "findrefs",
		Name:      "documents_total",
		Help:      "Documents considered by searches, by phase result.",
	}, []string{"result"})
	locationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "refsearch",
		Subsystem: "findrefs",
		Name:      "locations_total",
		Help:      "Reported reference locations by candidate reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(searchCounter)
	prometheus.MustRegister(searchDuration)
	prometheus.MustRegister(indexBuilds)
	prometheus.MustRegister(indexHits)
	prometheus.MustRegister(documentsCounter)
	prometheus.MustRegister(locationsCounter)
}
