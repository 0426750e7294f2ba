// Package metrics provides metrics collection and reporting for the MCP server.
package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const namespace = "es_mcp"

// Prometheus metric labels
const (
	labelTool   = "tool"
	labelStatus = "status"
	labelLevel  = "level"
)

// tokenBuckets span 64 to ~1M tokens
var tokenBuckets = prometheus.ExponentialBuckets(64, 2, 15)

// Metrics tracks operational metrics with both internal counters and Prometheus metrics
type Metrics struct {
	// Cluster request metrics
	totalRequests      atomic.Uint64
	successfulRequests atomic.Uint64
	failedRequests     atomic.Uint64

	// Latency tracking
	totalLatency atomic.Int64 // microseconds
	latencyCount atomic.Uint64
	maxLatency   atomic.Int64
	minLatency   atomic.Int64

	rateLimitHits atomic.Uint64

	// Token shaping
	tokensOriginal  atomic.Uint64
	tokensOptimized atomic.Uint64
	budgetExceeded  atomic.Uint64

	errorsMu       sync.RWMutex
	errorsByStatus map[int]uint64

	toolsMu     sync.RWMutex
	toolUsage   map[string]uint64
	toolErrors  map[string]uint64
	toolLatency map[string]int64 // microseconds
	levelUsage  map[string]uint64

	logger   *zap.Logger
	registry *prometheus.Registry

	promRequestsTotal      prometheus.Counter
	promRequestsSuccessful prometheus.Counter
	promRequestsFailed     prometheus.Counter
	promRateLimitHits      prometheus.Counter
	promRequestLatency     prometheus.Histogram
	promErrorsByStatus     *prometheus.CounterVec
	promToolCalls          *prometheus.CounterVec
	promToolErrors         *prometheus.CounterVec
	promToolLatency        *prometheus.HistogramVec
	promTokensOriginal     *prometheus.HistogramVec
	promTokensOptimized    *prometheus.HistogramVec
	promDetailLevel        *prometheus.CounterVec
	promBudgetExceeded     *prometheus.CounterVec
}

// New creates a metrics tracker with its own Prometheus registry
func New(logger *zap.Logger) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	m := &Metrics{
		errorsByStatus: make(map[int]uint64),
		toolUsage:      make(map[string]uint64),
		toolErrors:     make(map[string]uint64),
		toolLatency:    make(map[string]int64),
		levelUsage:     make(map[string]uint64),
		logger:         logger,
		registry:       reg,

		promRequestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of requests sent to the cluster",
		}),
		promRequestsSuccessful: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_successful_total",
			Help:      "Total number of cluster requests answered with a 2xx/3xx status",
		}),
		promRequestsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_failed_total",
			Help:      "Total number of failed cluster requests",
		}),
		promRateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of requests delayed by the client rate limiter",
		}),
		promRequestLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_seconds",
			Help:      "Cluster request latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		promErrorsByStatus: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_by_status_total",
			Help:      "Cluster request errors by HTTP status code",
		}, []string{labelStatus}),
		promToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls, labeled by tool name",
		}, []string{labelTool}),
		promToolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_errors_total",
			Help:      "Total number of tool errors, labeled by tool name",
		}, []string{labelTool}),
		promToolLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_latency_seconds",
			Help:      "Tool execution latency in seconds, labeled by tool name",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{labelTool}),
		promTokensOriginal: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tokens_original",
			Help:      "Estimated tokens of the unshaped cluster data per tool call",
			Buckets:   tokenBuckets,
		}, []string{labelTool}),
		promTokensOptimized: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tokens_optimized",
			Help:      "Estimated tokens of the shaped response per tool call",
			Buckets:   tokenBuckets,
		}, []string{labelTool}),
		promDetailLevel: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detail_level_total",
			Help:      "Shaped responses by tool and chosen detail level",
		}, []string{labelTool, labelLevel}),
		promBudgetExceeded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_exceeded_total",
			Help:      "Responses returned over their token budget",
		}, []string{labelTool}),
	}

	m.minLatency.Store(int64(time.Hour))

	return m
}

// Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest records a cluster request
func (m *Metrics) RecordRequest(success bool, latency time.Duration, statusCode int) {
	m.totalRequests.Add(1)

	m.promRequestsTotal.Inc()
	m.promRequestLatency.Observe(latency.Seconds())

	if success {
		m.successfulRequests.Add(1)
		m.promRequestsSuccessful.Inc()
	} else {
		m.failedRequests.Add(1)
		m.promRequestsFailed.Inc()
		m.recordErrorStatus(statusCode)
	}

	m.recordLatency(latency)
}

// RecordRateLimitHit records a request delayed by the rate limiter
func (m *Metrics) RecordRateLimitHit() {
	m.rateLimitHits.Add(1)
	m.promRateLimitHits.Inc()
}

// RecordToolExecution records one tool invocation
func (m *Metrics) RecordToolExecution(toolName string, success bool, latency time.Duration) {
	m.toolsMu.Lock()
	m.toolUsage[toolName]++
	if !success {
		m.toolErrors[toolName]++
	}

	// Rolling average in float64 to avoid integer overflow
	if latency > 0 && m.toolUsage[toolName] > 0 {
		currentLatency := m.toolLatency[toolName]
		count := float64(m.toolUsage[toolName])
		avgLatency := (float64(currentLatency)*(count-1) + float64(latency.Microseconds())) / count
		m.toolLatency[toolName] = int64(avgLatency)
	}
	m.toolsMu.Unlock()

	m.promToolCalls.WithLabelValues(toolName).Inc()
	m.promToolLatency.WithLabelValues(toolName).Observe(latency.Seconds())
	if !success {
		m.promToolErrors.WithLabelValues(toolName).Inc()
	}
}

// RecordShaping records how a tool response was shaped
func (m *Metrics) RecordShaping(toolName, level string, original, optimized int, exceeded bool) {
	m.tokensOriginal.Add(uint64(max(original, 0)))
	m.tokensOptimized.Add(uint64(max(optimized, 0)))

	m.toolsMu.Lock()
	m.levelUsage[level]++
	m.toolsMu.Unlock()

	m.promTokensOriginal.WithLabelValues(toolName).Observe(float64(original))
	m.promTokensOptimized.WithLabelValues(toolName).Observe(float64(optimized))
	m.promDetailLevel.WithLabelValues(toolName, level).Inc()
	if exceeded {
		m.budgetExceeded.Add(1)
		m.promBudgetExceeded.WithLabelValues(toolName).Inc()
	}
}

func (m *Metrics) recordLatency(latency time.Duration) {
	latencyUs := latency.Microseconds()

	m.totalLatency.Add(latencyUs)
	m.latencyCount.Add(1)

	for {
		currentMax := m.maxLatency.Load()
		if latencyUs <= currentMax {
			break
		}
		if m.maxLatency.CompareAndSwap(currentMax, latencyUs) {
			break
		}
	}

	for {
		currentMin := m.minLatency.Load()
		if latencyUs >= currentMin {
			break
		}
		if m.minLatency.CompareAndSwap(currentMin, latencyUs) {
			break
		}
	}
}

func (m *Metrics) recordErrorStatus(statusCode int) {
	if statusCode == 0 {
		return
	}

	m.errorsMu.Lock()
	m.errorsByStatus[statusCode]++
	m.errorsMu.Unlock()

	m.promErrorsByStatus.WithLabelValues(fmt.Sprintf("%d", statusCode)).Inc()
}

// GetStats returns current statistics
func (m *Metrics) GetStats() Stats {
	m.errorsMu.RLock()
	errorsByStatus := make(map[int]uint64, len(m.errorsByStatus))
	for k, v := range m.errorsByStatus {
		errorsByStatus[k] = v
	}
	m.errorsMu.RUnlock()

	m.toolsMu.RLock()
	toolUsage := make(map[string]uint64, len(m.toolUsage))
	toolErrors := make(map[string]uint64, len(m.toolErrors))
	toolLatency := make(map[string]time.Duration, len(m.toolLatency))
	levelUsage := make(map[string]uint64, len(m.levelUsage))
	for k, v := range m.toolUsage {
		toolUsage[k] = v
	}
	for k, v := range m.toolErrors {
		toolErrors[k] = v
	}
	for k, v := range m.toolLatency {
		toolLatency[k] = time.Duration(v) * time.Microsecond
	}
	for k, v := range m.levelUsage {
		levelUsage[k] = v
	}
	m.toolsMu.RUnlock()

	latencyCount := m.latencyCount.Load()
	var avgLatency time.Duration
	if latencyCount > 0 {
		avgLatencyMicros := float64(m.totalLatency.Load()) / float64(latencyCount)
		avgLatency = time.Duration(avgLatencyMicros) * time.Microsecond
	}
	minLatency := time.Duration(m.minLatency.Load()) * time.Microsecond
	if latencyCount == 0 {
		minLatency = 0
	}

	return Stats{
		TotalRequests:      m.totalRequests.Load(),
		SuccessfulRequests: m.successfulRequests.Load(),
		FailedRequests:     m.failedRequests.Load(),
		RateLimitHits:      m.rateLimitHits.Load(),
		AverageLatency:     avgLatency,
		MaxLatency:         time.Duration(m.maxLatency.Load()) * time.Microsecond,
		MinLatency:         minLatency,
		ErrorsByStatus:     errorsByStatus,
		ToolUsage:          toolUsage,
		ToolErrors:         toolErrors,
		ToolLatency:        toolLatency,
		TokensOriginal:     m.tokensOriginal.Load(),
		TokensOptimized:    m.tokensOptimized.Load(),
		BudgetExceeded:     m.budgetExceeded.Load(),
		DetailLevels:       levelUsage,
	}
}

// LogStats logs current statistics
func (m *Metrics) LogStats() {
	stats := m.GetStats()

	var errorRate float64
	if stats.TotalRequests > 0 {
		errorRate = float64(stats.FailedRequests) / float64(stats.TotalRequests) * 100
	}

	m.logger.Info("Operational metrics",
		zap.Uint64("total_requests", stats.TotalRequests),
		zap.Uint64("successful_requests", stats.SuccessfulRequests),
		zap.Uint64("failed_requests", stats.FailedRequests),
		zap.Float64("error_rate_pct", errorRate),
		zap.Uint64("rate_limit_hits", stats.RateLimitHits),
		zap.Duration("avg_latency", stats.AverageLatency),
		zap.Duration("max_latency", stats.MaxLatency),
		zap.Any("errors_by_status", stats.ErrorsByStatus),
		zap.Any("tool_usage", stats.ToolUsage),
		zap.Uint64("tokens_original", stats.TokensOriginal),
		zap.Uint64("tokens_optimized", stats.TokensOptimized),
		zap.Float64("tokens_saved_pct", stats.SavedPercent()),
		zap.Any("detail_levels", stats.DetailLevels),
	)
}

// Stats represents current metrics
type Stats struct {
	TotalRequests      uint64                   `json:"total_requests"`
	SuccessfulRequests uint64                   `json:"successful_requests"`
	FailedRequests     uint64                   `json:"failed_requests"`
	RateLimitHits      uint64                   `json:"rate_limit_hits"`
	AverageLatency     time.Duration            `json:"average_latency"`
	MaxLatency         time.Duration            `json:"max_latency"`
	MinLatency         time.Duration            `json:"min_latency"`
	ErrorsByStatus     map[int]uint64           `json:"errors_by_status"`
	ToolUsage          map[string]uint64        `json:"tool_usage"`
	ToolErrors         map[string]uint64        `json:"tool_errors"`
	ToolLatency        map[string]time.Duration `json:"tool_latency"`
	TokensOriginal     uint64                   `json:"tokens_original"`
	TokensOptimized    uint64                   `json:"tokens_optimized"`
	BudgetExceeded     uint64                   `json:"budget_exceeded"`
	DetailLevels       map[string]uint64        `json:"detail_levels"`
}

// SavedPercent is the share of original tokens shaping removed, never negative
func (s Stats) SavedPercent() float64 {
	if s.TokensOriginal == 0 || s.TokensOptimized >= s.TokensOriginal {
		return 0
	}
	return float64(s.TokensOriginal-s.TokensOptimized) / float64(s.TokensOriginal) * 100
}
