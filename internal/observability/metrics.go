package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "broadcasts_total", Help: "Trip offer broadcasts by outcome"},
		[]string{"outcome"},
	)
	DriversNotified = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "trip_dispatch", Name: "drivers_notified", Help: "Drivers notified per broadcast",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})
	AcceptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "accepts_total", Help: "Acceptance attempts by outcome"},
		[]string{"outcome"},
	)
	ReapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "reaps_total", Help: "Offer timeout reaps by outcome"},
		[]string{"outcome"},
	)
	CancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "cancellations_total", Help: "Trip cancellations by phase and actor"},
		[]string{"phase", "actor"},
	)
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "lifecycle_transitions_total", Help: "Lifecycle transitions by target status"},
		[]string{"status"},
	)
	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "trip_dispatch", Name: "match_latency_seconds", Help: "Broadcast-to-accept latency seconds",
	})
	DriversOnline = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "trip_dispatch", Name: "drivers_online", Help: "Drivers with a live dispatch socket"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trip_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
