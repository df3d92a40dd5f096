// Package metrics 提供自成交风控服务的 Prometheus 监控指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eidos_selftrade"

// 检查结果
const (
	ResultAllowed  = "allowed"
	ResultRejected = "rejected"
	ResultBypassed = "bypassed"
	ResultError    = "error"
)

// 风控检查指标
var (
	// ChecksTotal 自成交检查总数
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "自成交检查总数",
		},
		[]string{"result", "market"},
	)

	// CheckDuration 自成交检查耗时
	CheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "自成交检查耗时(秒)",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
		[]string{"result"},
	)

	// CandidateOrders 每次检查的已有订单数
	CandidateOrders = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidate_orders",
			Help:      "每次检查携带的已有订单数",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// TriggerIndex 触发拒绝的候选订单下标
	TriggerIndex = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trigger_index",
			Help:      "触发拒绝的候选订单下标",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// SelfTradeEnabled 自成交检查开关
	SelfTradeEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "enabled",
			Help:      "自成交检查是否启用 (1/0)",
		},
	)
)

// 旁路指标
var (
	// KafkaMessagesProduced Kafka 生产消息数
	KafkaMessagesProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_messages_produced_total",
			Help:      "Kafka 生产消息总数",
		},
		[]string{"topic", "result"},
	)

	// AuditWritesTotal 审计日志写入数
	AuditWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_writes_total",
			Help:      "审计日志写入总数",
		},
		[]string{"result"},
	)
)

// HTTP 指标
var (
	// HTTPRequestsTotal HTTP 请求总数
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration HTTP 请求耗时
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP 请求耗时(秒)",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight 正在处理的请求数
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "正在处理的 HTTP 请求数",
		},
	)
)

// RecordCheck 记录一次检查
func RecordCheck(result, market string, candidates int, durationSeconds float64) {
	ChecksTotal.WithLabelValues(result, market).Inc()
	CheckDuration.WithLabelValues(result).Observe(durationSeconds)
	CandidateOrders.Observe(float64(candidates))
}

// RecordTrigger 记录触发下标
func RecordTrigger(index int) {
	TriggerIndex.Observe(float64(index))
}

// SetSelfTradeEnabled 设置开关指标
func SetSelfTradeEnabled(enabled bool) {
	if enabled {
		SelfTradeEnabled.Set(1)
		return
	}
	SelfTradeEnabled.Set(0)
}

// RecordKafkaMessage 记录 Kafka 消息
func RecordKafkaMessage(topic string, success bool) {
	result := "success"
	if !success {
		result = "failed"
	}
	KafkaMessagesProduced.WithLabelValues(topic, result).Inc()
}

// RecordAuditWrite 记录审计写入
func RecordAuditWrite(success bool) {
	result := "success"
	if !success {
		result = "failed"
	}
	AuditWritesTotal.WithLabelValues(result).Inc()
}

// RecordHTTPRequest 记录 HTTP 请求
func RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

// Handler 返回 /metrics 处理器
func Handler() http.Handler {
	return promhttp.Handler()
}
