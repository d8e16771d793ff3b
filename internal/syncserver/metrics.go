package syncserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	batches  *prometheus.CounterVec
	records  *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytdetox",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ytdetox",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytdetox",
			Name:      "sync_batches_total",
			Help:      "Sync batches by outcome.",
		}, []string{"result"}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytdetox",
			Name:      "sync_records_upserted_total",
			Help:      "Records upserted by sync batches.",
		}, []string{"kind"}),
	}
}
