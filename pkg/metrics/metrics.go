// Package metrics 提供 Prometheus 指标采集功能
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "z_novel_blueprint"

func counter(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func histogram(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

// llmBuckets 单次模型调用或单个子区间的耗时，流式生成通常在数十秒量级
var llmBuckets = []float64{1, 5, 10, 30, 60, 120, 300}

// HTTP
var (
	HTTPRequestsTotal = counter("http", "requests_total",
		"Total number of HTTP requests", "method", "path", "status")

	// HTTPRequestDuration SSE 长连接会落在最后几个桶
	HTTPRequestDuration = histogram("http", "request_duration_seconds",
		"HTTP request duration in seconds",
		[]float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 60, 300},
		"method", "path")

	HTTPResponseSize = histogram("http", "response_size_bytes",
		"HTTP response size in bytes", prometheus.ExponentialBuckets(100, 10, 6),
		"method", "path")
)

// 目录生成
var (
	// BlueprintChunksTotal status: success/empty/error/cancelled/skipped
	BlueprintChunksTotal = counter("generator", "chunks_total",
		"Total number of blueprint generation chunks", "status")

	BlueprintChunkDuration = histogram("generator", "chunk_duration_seconds",
		"Blueprint chunk generation duration in seconds", llmBuckets).WithLabelValues()

	BlueprintChaptersWritten = counter("generator", "chapters_written_total",
		"Total number of chapter blueprints written").WithLabelValues()

	BlueprintRunsTotal = counter("generator", "runs_total",
		"Total number of range generation runs", "status")

	ValidationWarnings = counter("validator", "warnings_total",
		"Total number of blueprint validation warnings", "check")

	// BlueprintJobsTotal status: completed/failed/skipped
	BlueprintJobsTotal = counter("jobs", "processed_total",
		"Total number of async blueprint jobs processed", "type", "status")
)

// LLM
var (
	// LLMTokensUsed type: prompt/completion
	LLMTokensUsed = counter("llm", "tokens_used_total",
		"Total tokens used for LLM calls", "workflow", "provider", "model", "type")

	LLMCallDuration = histogram("llm", "call_duration_seconds",
		"LLM call duration in seconds", llmBuckets, "workflow", "provider", "model")

	LLMCallTotal = counter("llm", "call_total",
		"Total number of LLM calls", "workflow", "provider", "model", "status")
)

// 队列
var (
	RedisStreamProcessed = counter("queue", "messages_processed_total",
		"Total number of Redis stream messages processed", "stream", "status")

	RedisStreamLag = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "consumer_lag",
		Help:      "Pending plus undelivered messages of the consumer group",
	}, []string{"stream", "consumer_group"})
)
