package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 意图拆解结果来源计数
	IntentParseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_parse_total",
			Help: "Total number of intent decompositions by source",
		},
		[]string{"source"}, // source: default, model, rule
	)

	// 缓存命中的意图拆解（同时计入 intent_parse_total）
	IntentCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intent_cache_hits_total",
			Help: "Total number of intent decompositions served from the cache",
		},
	)

	// 模型输出不可用计数
	IntentModelUnusable = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_model_unusable_total",
			Help: "Total number of unusable structured model results by reason",
		},
		[]string{"reason"},
	)

	// 模型调用延迟（毫秒）
	AgentCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_call_latency_ms",
			Help:    "Model call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10), // 50ms to ~25s
		},
		[]string{"endpoint", "status"},
	)

	// 熔断器状态切换
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "to"},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"routing_key", "queue"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "table"},
	)

	SlowQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"operation"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	MeetingBookingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meeting_booking_total",
			Help: "Meeting room booking attempts by status",
		},
		[]string{"status"}, // status: booked, conflict, invalid, failed
	)

	StepExecutionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "step_execution_total",
			Help: "Executed decomposition steps by outcome",
		},
		[]string{"step", "status"},
	)
)

func RecordIntentParse(source string) {
	IntentParseTotal.WithLabelValues(source).Inc()
}

// RecordIntentCacheHit 缓存命中也按来源计入解析总数
func RecordIntentCacheHit(source string) {
	IntentCacheHits.Inc()
	IntentParseTotal.WithLabelValues(source).Inc()
}

func RecordIntentModelUnusable(reason string) {
	IntentModelUnusable.WithLabelValues(reason).Inc()
}

// RecordAgentCallLatency 记录模型调用延迟
func RecordAgentCallLatency(endpoint, status string, duration time.Duration) {
	AgentCallLatency.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}

func RecordCircuitBreakerTransition(name, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, to).Inc()
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func IncrementSlowQuery(operation string) {
	SlowQueryTotal.WithLabelValues(operation).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordMeetingBooking(status string) {
	MeetingBookingTotal.WithLabelValues(status).Inc()
}

func RecordStepExecution(step, status string) {
	StepExecutionTotal.WithLabelValues(step, status).Inc()
}
