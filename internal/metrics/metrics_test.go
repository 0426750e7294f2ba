package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecordRequest(t *testing.T) {
	m := New(zap.NewNop())

	m.RecordRequest(true, 10*time.Millisecond, 200)
	m.RecordRequest(false, 30*time.Millisecond, 503)
	m.RecordRequest(false, 20*time.Millisecond, 0)
	m.RecordRateLimitHit()

	stats := m.GetStats()
	assert.Equal(t, uint64(3), stats.TotalRequests)
	assert.Equal(t, uint64(1), stats.SuccessfulRequests)
	assert.Equal(t, uint64(2), stats.FailedRequests)
	assert.Equal(t, uint64(1), stats.RateLimitHits)
	assert.Equal(t, map[int]uint64{503: 1}, stats.ErrorsByStatus)
	assert.Equal(t, 30*time.Millisecond, stats.MaxLatency)
	assert.Equal(t, 10*time.Millisecond, stats.MinLatency)
	assert.Equal(t, 20*time.Millisecond, stats.AverageLatency)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.promRequestsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.promErrorsByStatus.WithLabelValues("503")))
}

func TestRecordToolExecution(t *testing.T) {
	m := New(zap.NewNop())

	m.RecordToolExecution("list_indices", true, 10*time.Millisecond)
	m.RecordToolExecution("list_indices", false, 30*time.Millisecond)

	stats := m.GetStats()
	assert.Equal(t, uint64(2), stats.ToolUsage["list_indices"])
	assert.Equal(t, uint64(1), stats.ToolErrors["list_indices"])
	assert.Equal(t, 20*time.Millisecond, stats.ToolLatency["list_indices"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.promToolErrors.WithLabelValues("list_indices")))
}

func TestRecordShaping(t *testing.T) {
	m := New(zap.NewNop())

	m.RecordShaping("list_indices", "compact", 10000, 2500, false)
	m.RecordShaping("get_mappings", "minimal", 8000, 1500, true)

	stats := m.GetStats()
	assert.Equal(t, uint64(18000), stats.TokensOriginal)
	assert.Equal(t, uint64(4000), stats.TokensOptimized)
	assert.Equal(t, uint64(1), stats.BudgetExceeded)
	assert.Equal(t, map[string]uint64{"compact": 1, "minimal": 1}, stats.DetailLevels)
	assert.InDelta(t, 77.78, stats.SavedPercent(), 0.01)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.promDetailLevel.WithLabelValues("list_indices", "compact")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.promBudgetExceeded.WithLabelValues("get_mappings")))
}

func TestNew_IndependentRegistries(t *testing.T) {
	a := New(zap.NewNop())
	b := New(zap.NewNop())
	require.NotSame(t, a.Registry(), b.Registry())

	a.RecordToolExecution("search", true, time.Millisecond)
	families, err := a.Registry().Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["es_mcp_tool_calls_total"])
	assert.True(t, names["go_goroutines"])
}

func TestStats_EmptyLatency(t *testing.T) {
	stats := New(zap.NewNop()).GetStats()
	assert.Zero(t, stats.MinLatency)
	assert.Zero(t, stats.AverageLatency)
	assert.Zero(t, stats.SavedPercent())
}
