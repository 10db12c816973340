package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	// FREDRequestsTotal tracks outbound FRED API calls by series and result.
	FREDRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fred_api_requests_total",
			Help: "Total number of FRED API requests made (by series and status).",
		},
		[]string{"series", "status"},
	)

	// FREDRequestDuration measures the duration of outbound FRED API calls.
	FREDRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fred_api_request_duration_seconds",
			Help:    "Duration of FRED API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms → ~40s
		},
		[]string{"series"},
	)

	// ObservationsTotal counts normalized observations by series and kind.
	ObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fred_observations_total",
			Help: "Observations received per series, split into valid and missing values.",
		},
		[]string{"series", "kind"}, // kind = "valid" | "missing"
	)

	// JobRuns tracks job outcomes.
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fred_job_runs_total",
			Help: "Number of fetch job runs by job and result.",
		},
		[]string{"job", "result"}, // result = "ok" | "error"
	)

	// LastSuccess gauges the last successful write per job (seconds since epoch).
	LastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fred_job_last_success_timestamp",
			Help: "Timestamp (unix seconds) of the last successful output write.",
		},
		[]string{"job"},
	)

	// ErrorsTotal tracks errors by component.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fred_errors_total",
			Help: "Count of errors by component and reason.",
		},
		[]string{"component", "reason"},
	)

	// NATSMessageCount tracks snapshot events published by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"},
	)
)

// IncFREDRequest increments the FRED request counter.
func IncFREDRequest(series, status string) {
	FREDRequestsTotal.WithLabelValues(series, status).Inc()
}

// AddObservations records valid and missing counts for a series.
func AddObservations(series string, valid, missing int) {
	ObservationsTotal.WithLabelValues(series, "valid").Add(float64(valid))
	ObservationsTotal.WithLabelValues(series, "missing").Add(float64(missing))
}

// IncError increments the error counter.
func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

// IncNATSMessage increments the NATS message counter.
func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

// ObserveDuration records elapsed time since start into a HistogramVec or SummaryVec.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()
	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	}
}

// Push sends the default registry to a Prometheus Pushgateway. Batch runs
// exit before any scrape could happen, so this is how their metrics survive.
func Push(ctx context.Context, url, job string) error {
	return push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
}
