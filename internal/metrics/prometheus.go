package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oscar_gateway",
		Name:      "upstream_requests_total",
		Help:      "Upstream calls by service, method and status code.",
	}, []string{"service", "method", "code"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "oscar_gateway",
		Name:      "upstream_request_duration_seconds",
		Help:      "Upstream call latency.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 90},
	}, []string{"service", "method"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oscar_gateway",
		Name:      "http_requests_total",
		Help:      "Inbound requests by route pattern, method and status code.",
	}, []string{"route", "method", "code"})
)

// ObserveUpstream records one upstream call. code is the HTTP status or
// "error" when no response was received.
func ObserveUpstream(service, method, code string, took time.Duration) {
	upstreamRequests.WithLabelValues(service, method, code).Inc()
	upstreamDuration.WithLabelValues(service, method).Observe(took.Seconds())
}

// ObserveRequest records one inbound request.
func ObserveRequest(route, method, code string) {
	httpRequests.WithLabelValues(route, method, code).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
