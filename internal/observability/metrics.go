package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hxa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hxa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	codecOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hxa",
			Subsystem: "codec",
			Name:      "operations_total",
			Help:      "Codec decode/encode calls by outcome.",
		},
		[]string{"op", "outcome"},
	)
	codecBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hxa",
			Subsystem: "codec",
			Name:      "bytes_total",
			Help:      "Bytes decoded or encoded.",
		},
		[]string{"op"},
	)
	codecDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hxa",
			Subsystem: "codec",
			Name:      "duration_seconds",
			Help:      "Codec call duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"op"},
	)
	codecErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hxa",
			Subsystem: "codec",
			Name:      "errors_total",
			Help:      "Codec failures by error kind.",
		},
		[]string{"op", "kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, codecOperations, codecBytes, codecDuration, codecErrors)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordCodec records one decode or encode call. kind is the error kind label
// and is ignored on success.
func RecordCodec(op string, bytes int, duration time.Duration, kind string, success bool) {
	RegisterMetrics()
	outcome := "ok"
	if !success {
		outcome = "error"
		codecErrors.WithLabelValues(op, kind).Inc()
	}
	codecOperations.WithLabelValues(op, outcome).Inc()
	codecBytes.WithLabelValues(op).Add(float64(bytes))
	codecDuration.WithLabelValues(op).Observe(duration.Seconds())
}
