package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLog_Disabled(t *testing.T) {
	l := NewLogger(zap.NewNop(), false)
	l.Log(context.Background(), Entry{Tool: "search", Success: true})

	assert.False(t, l.IsEnabled())
	assert.Empty(t, l.GetRecentEntries(0))
}

func TestLog_SanitizesAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewLogger(zap.New(core), true)

	l.Log(context.Background(), Entry{
		Tool:      "execute_es_request",
		Target:    "/_security/_authenticate?api_key=abc123",
		ErrorCode: "UNAUTHORIZED",
		ErrorMsg:  "rejected password=hunter2",
	})

	entries := l.GetRecentEntries(1)
	require.Len(t, entries, 1)
	assert.Equal(t, "/_security/_authenticate?api_key=***REDACTED***", entries[0].Target)
	assert.NotContains(t, entries[0].ErrorMsg, "hunter2")
	assert.False(t, entries[0].Timestamp.IsZero())

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "audit", entry.LoggerName)
	assert.Equal(t, "UNAUTHORIZED", entry.ContextMap()["error_code"])
}

func TestGetRecentEntries_NewestFirstAndBounded(t *testing.T) {
	l := NewLogger(zap.NewNop(), true)
	l.maxEntries = 3
	for i := 0; i < 5; i++ {
		l.Log(context.Background(), Entry{Tool: fmt.Sprintf("tool-%d", i), Success: true})
	}

	entries := l.GetRecentEntries(0)
	require.Len(t, entries, 3)
	assert.Equal(t, "tool-4", entries[0].Tool)
	assert.Equal(t, "tool-2", entries[2].Tool)

	assert.Len(t, l.GetRecentEntries(2), 2)
}

func TestGetEntriesByTool(t *testing.T) {
	l := NewLogger(zap.NewNop(), true)
	for i := 0; i < 4; i++ {
		tool := "search"
		if i%2 == 1 {
			tool = "list_indices"
		}
		l.Log(context.Background(), Entry{Tool: tool, Target: fmt.Sprintf("idx-%d", i)})
	}

	entries := l.GetEntriesByTool("search", 10)
	require.Len(t, entries, 2)
	assert.Equal(t, "idx-2", entries[0].Target)
}

func TestGetStats(t *testing.T) {
	l := NewLogger(zap.NewNop(), true)
	ctx := context.Background()
	l.Log(ctx, Entry{Tool: "list_indices", Success: true, Duration: 10 * time.Millisecond, Level: "compact", TokensOriginal: 9000, TokensOptimized: 1500})
	l.Log(ctx, Entry{Tool: "list_indices", Success: true, Duration: 30 * time.Millisecond, Level: "minimal", TokensOriginal: 20000, TokensOptimized: 5000, BudgetExceeded: true})
	l.Log(ctx, Entry{Tool: "sql_query", Success: false, ErrorCode: "CAPABILITY_GAP", Duration: 20 * time.Millisecond})

	stats := l.GetStats()
	assert.Equal(t, 3, stats.TotalEntries)
	assert.InDelta(t, 66.67, stats.SuccessRate, 0.01)
	assert.Equal(t, 20*time.Millisecond, stats.AverageDuration)
	assert.Equal(t, 2, stats.ToolUsage["list_indices"])
	assert.Equal(t, map[string]int{"compact": 1, "minimal": 1}, stats.LevelCounts)
	assert.Equal(t, 1, stats.ErrorCounts["CAPABILITY_GAP"])
	assert.Equal(t, 1, stats.BudgetExceeded)
	assert.Equal(t, 29000, stats.TokensOriginal)
	assert.Equal(t, 6500, stats.TokensOptimized)
}
