package langserver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "refsearch",
		Subsystem: "lsp",
		Name:      "requests_total",
		Help:      "Number of JSON-RPC requests handled, by method and success.",
	}, []string{"method", "success"})
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "refsearch",
		Subsystem: "lsp",
		Name:      "request_duration_seconds",
		Help:      "Time spent handling JSON-RPC requests.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"method"})
)

func init() {
	prometheus.MustRegister(requestCounter)
	prometheus.MustRegister(requestDuration)
}

func observeRequest(method string, start time.Time, err error) {
	if !isSearchRequest(method) && method != "initialize" {
		// Notifications share one label.
		method = "other"
	}
	success := "true"
	if err != nil {
		success = "false"
	}
	requestCounter.WithLabelValues(method, success).Inc()
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
