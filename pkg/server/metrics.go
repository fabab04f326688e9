package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitfix_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gitfix_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"route"},
	)

	inflightRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gitfix_http_inflight_requests",
		Help: "Requests currently being served",
	})

	proposals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitfix_proposals_total",
			Help: "Turn outcomes by kind (text, diff, error)",
		},
		[]string{"kind"},
	)

	publishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitfix_publishes_total",
			Help: "Publish attempts by result (created, existing, failed)",
		},
		[]string{"result"},
	)
)
