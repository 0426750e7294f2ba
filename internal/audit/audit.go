// Package audit records every tool call: which tool ran against which
// target, how the response was shaped and whether it failed. Recent entries
// are kept in memory for the audit://recent resource.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/security"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/tracing"
)

// DefaultMaxEntries bounds the in-memory buffer
const DefaultMaxEntries = 1000

// Entry represents a single audit log entry
type Entry struct {
	Timestamp time.Time     `json:"timestamp"`
	TraceID   string        `json:"trace_id,omitempty"`
	SpanID    string        `json:"span_id,omitempty"`
	Tool      string        `json:"tool"`
	Target    string        `json:"target,omitempty"` // index pattern or request path
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration_ns"`
	ErrorCode string        `json:"error_code,omitempty"`
	ErrorMsg  string        `json:"error_message,omitempty"`

	Level           string `json:"level,omitempty"`
	TokensOriginal  int    `json:"tokens_original,omitempty"`
	TokensOptimized int    `json:"tokens_optimized,omitempty"`
	TokenLimit      int    `json:"token_limit,omitempty"`
	BudgetExceeded  bool   `json:"budget_exceeded,omitempty"`
}

// Logger handles audit logging
type Logger struct {
	enabled bool
	logger  *zap.Logger

	mu         sync.RWMutex
	entries    []Entry
	maxEntries int
}

// NewLogger creates a new audit logger
func NewLogger(logger *zap.Logger, enabled bool) *Logger {
	return &Logger{
		enabled:    enabled,
		logger:     logger.Named("audit"),
		entries:    make([]Entry, 0, 64),
		maxEntries: DefaultMaxEntries,
	}
}

// Log records an audit entry. Error messages are sanitized before they are
// logged or stored.
func (l *Logger) Log(ctx context.Context, entry Entry) {
	if !l.enabled {
		return
	}

	traceInfo := tracing.FromContext(ctx)
	if traceInfo.TraceID != "" {
		entry.TraceID = traceInfo.TraceID
		entry.SpanID = traceInfo.SpanID
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.ErrorMsg = security.MaskSensitiveData(entry.ErrorMsg)
	entry.Target = security.MaskURL(entry.Target)

	fields := []zap.Field{
		zap.String("tool", entry.Tool),
		zap.Bool("success", entry.Success),
		zap.Duration("duration", entry.Duration),
	}
	if entry.TraceID != "" {
		fields = append(fields, zap.String("trace_id", entry.TraceID))
	}
	if entry.Target != "" {
		fields = append(fields, zap.String("target", entry.Target))
	}
	if entry.Level != "" {
		fields = append(fields,
			zap.String("level", entry.Level),
			zap.Int("tokens_original", entry.TokensOriginal),
			zap.Int("tokens_optimized", entry.TokensOptimized),
			zap.Int("token_limit", entry.TokenLimit),
		)
	}
	if entry.BudgetExceeded {
		fields = append(fields, zap.Bool("budget_exceeded", true))
	}
	if entry.ErrorCode != "" {
		fields = append(fields, zap.String("error_code", entry.ErrorCode))
	}
	if entry.ErrorMsg != "" {
		fields = append(fields, zap.String("error_message", entry.ErrorMsg))
	}
	l.logger.Info("audit", fields...)

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) >= l.maxEntries {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, entry)
}

// GetRecentEntries returns up to limit entries, newest first. A limit of
// zero or less returns everything.
func (l *Logger) GetRecentEntries(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.entries) {
		limit = len(l.entries)
	}
	result := make([]Entry, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, l.entries[i])
	}
	return result
}

// GetEntriesByTool returns up to limit entries for one tool, newest first
func (l *Logger) GetEntriesByTool(toolName string, limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []Entry
	for i := len(l.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if l.entries[i].Tool == toolName {
			result = append(result, l.entries[i])
		}
	}
	return result
}

// GetStats returns statistics about the buffered entries
func (l *Logger) GetStats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := Stats{
		TotalEntries: len(l.entries),
		ToolUsage:    make(map[string]int),
		LevelCounts:  make(map[string]int),
		ErrorCounts:  make(map[string]int),
	}

	var successCount int
	var totalDuration time.Duration
	for _, entry := range l.entries {
		stats.ToolUsage[entry.Tool]++
		if entry.Level != "" {
			stats.LevelCounts[entry.Level]++
		}
		if entry.Success {
			successCount++
		} else if entry.ErrorCode != "" {
			stats.ErrorCounts[entry.ErrorCode]++
		}
		if entry.BudgetExceeded {
			stats.BudgetExceeded++
		}
		stats.TokensOriginal += entry.TokensOriginal
		stats.TokensOptimized += entry.TokensOptimized
		totalDuration += entry.Duration
	}

	if len(l.entries) > 0 {
		stats.SuccessRate = float64(successCount) / float64(len(l.entries)) * 100
		stats.AverageDuration = totalDuration / time.Duration(len(l.entries))
	}
	return stats
}

// Stats contains aggregated audit statistics
type Stats struct {
	TotalEntries    int            `json:"total_entries"`
	SuccessRate     float64        `json:"success_rate_pct"`
	AverageDuration time.Duration  `json:"average_duration_ns"`
	ToolUsage       map[string]int `json:"tool_usage"`
	LevelCounts     map[string]int `json:"level_counts"`
	ErrorCounts     map[string]int `json:"error_counts"`
	BudgetExceeded  int            `json:"budget_exceeded"`
	TokensOriginal  int            `json:"tokens_original"`
	TokensOptimized int            `json:"tokens_optimized"`
}

// IsEnabled returns whether audit logging is enabled
func (l *Logger) IsEnabled() bool {
	return l.enabled
}
