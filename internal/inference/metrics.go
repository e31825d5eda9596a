package inference

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_inference_requests_total",
		Help: "Chat inference calls by backend and outcome.",
	}, []string{"backend", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_inference_request_duration_seconds",
		Help:    "Chat inference call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})
)

// observe records one call; backend is the config.Backend* value that served it.
func observe(backend string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	requestsTotal.WithLabelValues(backend, outcome).Inc()
	requestDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
}
