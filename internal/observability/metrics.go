// Package observability provides logging, metrics, and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// MessagesSent counts successfully appended messages by type.
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_messages_sent_total",
		Help: "Total number of messages appended by message type",
	}, []string{"type"})

	// ConversationsCreated counts created conversations by type.
	ConversationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_conversations_created_total",
		Help: "Total number of conversations created by conversation type",
	}, []string{"type"})

	// DirectDedupHits counts direct-conversation requests resolved to an
	// existing conversation, split by how the winner was found.
	DirectDedupHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_direct_dedup_hits_total",
		Help: "Direct conversation requests resolved to an existing conversation",
	}, []string{"path"}) // "lookup" or "conflict"

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hearth_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
