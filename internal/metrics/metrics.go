package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jam_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jam_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Registry metrics
	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jam_registrations_total",
			Help: "Register attempts by outcome (ok or error code)",
		},
		[]string{"outcome"},
	)

	cancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jam_cancellations_total",
			Help: "Cancel attempts by outcome (removed, noop or error code)",
		},
		[]string{"outcome"},
	)

	consistencyViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jam_consistency_violations_total",
			Help: "Observed events with reserved outside [0, max_capacity]",
		},
	)

	// Discovery metrics
	filterDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jam_filter_duration_seconds",
			Help:    "Time spent matching events against criteria",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)

	filterResultSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jam_filter_result_size",
			Help:    "Number of events returned by a discovery query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		},
	)

	discoveryCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jam_discovery_cache_total",
			Help: "Discovery snapshot cache lookups by result",
		},
		[]string{"result"},
	)

	// Messaging metrics
	outboxPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jam_outbox_published_total",
			Help: "Outbox messages by publish result",
		},
		[]string{"result"},
	)

	lifecycleMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jam_lifecycle_messages_total",
			Help: "Consumed event lifecycle messages by type and result",
		},
		[]string{"type", "result"},
	)

	dependencyHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jam_dependency_health",
			Help: "Health status of dependencies (1 = healthy, 0 = unhealthy)",
		},
		[]string{"dependency"},
	)
)

func RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordRegistration(outcome string) {
	registrationsTotal.WithLabelValues(outcome).Inc()
}

func RecordCancellation(outcome string) {
	cancellationsTotal.WithLabelValues(outcome).Inc()
}

func RecordConsistencyViolation() {
	consistencyViolations.Inc()
}

func ObserveFilter(d time.Duration, results int) {
	filterDuration.Observe(d.Seconds())
	filterResultSize.Observe(float64(results))
}

// RecordCacheLookup takes "hit", "miss" or "error".
func RecordCacheLookup(result string) {
	discoveryCacheTotal.WithLabelValues(result).Inc()
}

// RecordOutbox takes "sent", "retry" or "dead".
func RecordOutbox(result string) {
	outboxPublishedTotal.WithLabelValues(result).Inc()
}

func RecordLifecycleMessage(msgType, result string) {
	lifecycleMessagesTotal.WithLabelValues(msgType, result).Inc()
}

func SetDependencyHealth(dependency string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	dependencyHealth.WithLabelValues(dependency).Set(value)
}

// Handler returns the Prometheus metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
