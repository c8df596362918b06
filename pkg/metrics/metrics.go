package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ consume latency in milliseconds.
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// AI service call latency in milliseconds.
	AICallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_call_latency_ms",
			Help:    "AI service call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"endpoint", "status"},
	)

	// Mailbox provider call latency in milliseconds.
	MailboxCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailbox_call_latency_ms",
			Help:    "Mailbox provider call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10),
		},
		[]string{"endpoint", "status"},
	)

	// HTTP request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	EmailsFetchedCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_fetched_count",
			Help: "Total number of emails fetched from mailbox providers",
		},
	)

	EmailsProcessedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_processed_count",
			Help: "Total number of emails processed",
		},
		[]string{"status"}, // status: success, skipped, failed
	)

	TriageResultCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_result_count",
			Help: "Total number of triage results by priority",
		},
		[]string{"priority", "degraded"},
	)

	RetryAttemptCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_retry_attempt_count",
			Help: "Total number of activity retry attempts",
		},
		[]string{"activity"},
	)

	RetryExhaustedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_retry_exhausted_count",
			Help: "Total number of activities that exhausted their retries",
		},
		[]string{"activity"},
	)

	HeartbeatCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_heartbeat_count",
			Help: "Total number of liveness heartbeats emitted",
		},
		[]string{"workflow"},
	)

	DeadLetterCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dead_letter_count",
			Help: "Total number of items routed to the dead-letter path",
		},
	)

	ContinuationScheduledCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_continuation_scheduled_count",
			Help: "Total number of sync continuations scheduled",
		},
	)

	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of slow database queries",
		},
	)
)

// RecordMQConsumeLatency records MQ consume latency.
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordAICallLatency records AI service call latency.
func RecordAICallLatency(endpoint, status string, duration time.Duration) {
	AICallLatency.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}

// RecordMailboxCallLatency records mailbox provider call latency.
func RecordMailboxCallLatency(endpoint, status string, duration time.Duration) {
	MailboxCallLatency.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration records HTTP request latency.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementEmailProcessed increments the processed email counter.
func IncrementEmailProcessed(status string) {
	EmailsProcessedCount.WithLabelValues(status).Inc()
}

// IncrementSlowQuery increments the slow query counter.
func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}
