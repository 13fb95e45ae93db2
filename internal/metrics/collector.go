// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/workflow"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，同时实现 orchestrator.Recorder
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// RAG 请求指标
	queriesTotal       *prometheus.CounterVec
	queryDuration      prometheus.Histogram
	correctionAttempts prometheus.Histogram

	// 阶段指标
	stageDuration     *prometheus.HistogramVec
	stageDegradations *prometheus.CounterVec

	// 工作流来源：config=1 或 fallback=1
	workflowSource *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// RAG 请求指标
	c.queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rag_queries_total",
			Help:      "Total number of processed queries by outcome",
		},
		[]string{"outcome"},
	)

	c.queryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rag_query_duration_seconds",
			Help:      "End-to-end query processing duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	c.correctionAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rag_correction_attempts",
			Help:      "Correction passes per completed query",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		},
	)

	// 阶段指标
	c.stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rag_stage_duration_seconds",
			Help:      "Stage execution duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"workflow", "node"},
	)

	c.stageDegradations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rag_stage_degradations_total",
			Help:      "Stages that fell back to a degraded update",
		},
		[]string{"node"},
	)

	c.workflowSource = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rag_workflow_info",
			Help:      "Compiled workflow name and topology source",
		},
		[]string{"workflow", "source"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🔁 编排指标记录
// =============================================================================

// ObserveNode 记录单个节点耗时（workflow.NodeObserver）
func (c *Collector) ObserveNode(workflowName, node string, d time.Duration) {
	c.stageDuration.WithLabelValues(workflowName, node).Observe(d.Seconds())
}

// ObserveRequest 记录一次 ProcessQuery
func (c *Collector) ObserveRequest(success bool, d time.Duration) {
	c.queriesTotal.WithLabelValues(outcome(success)).Inc()
	c.queryDuration.Observe(d.Seconds())
}

// ObserveCorrections 记录完成请求的纠错次数
func (c *Collector) ObserveCorrections(attempts int) {
	c.correctionAttempts.Observe(float64(attempts))
}

// IncDegradation 记录阶段降级
func (c *Collector) IncDegradation(node string) {
	c.stageDegradations.WithLabelValues(node).Inc()
}

// SetWorkflowSource 记录当前工作流来源
func (c *Collector) SetWorkflowSource(workflowName string, source workflow.Source) {
	c.workflowSource.Reset()
	c.workflowSource.WithLabelValues(workflowName, string(source)).Set(1)
	if source == workflow.SourceFallback {
		c.logger.Warn("serving built-in fallback workflow", zap.String("workflow", workflowName))
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
