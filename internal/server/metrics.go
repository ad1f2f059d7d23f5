package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the counters the server exports on /metrics.
type Metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	downloads   *prometheus.CounterVec
	transferred prometheus.Counter
	reloads     *prometheus.CounterVec
}

// NewMetrics registers the server's metrics with registerer. A nil
// registerer uses the default one.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resmgr_http_requests_total",
				Help: "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "resmgr_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 30, 120, 600},
			},
			[]string{"route"},
		),
		downloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resmgr_downloads_total",
				Help: "Total number of resource downloads by outcome",
			},
			[]string{"outcome"},
		),
		transferred: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "resmgr_transferred_bytes_total",
				Help: "Total number of resource bytes downloaded or copied",
			},
		),
		reloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resmgr_registry_reloads_total",
				Help: "Total number of registry reloads triggered by user list changes",
			},
			[]string{"outcome"},
		),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
