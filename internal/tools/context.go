package tools

import (
	"context"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const callStatsContextKey contextKey = "call_stats"

// CallStats records how a tool call's response was shaped. The server
// attaches one per call and reads it back for metrics and audit.
type CallStats struct {
	Shaped   bool
	Level    budget.Level
	Tokens   budget.TokenStats
	Exceeded bool
}

// WithCallStats attaches an empty CallStats to ctx
func WithCallStats(ctx context.Context) (context.Context, *CallStats) {
	stats := &CallStats{}
	return context.WithValue(ctx, callStatsContextKey, stats), stats
}

// CallStatsFromContext returns the call's stats, or nil when none is attached.
func CallStatsFromContext(ctx context.Context) *CallStats {
	stats, _ := ctx.Value(callStatsContextKey).(*CallStats)
	return stats
}

func recordShaping(ctx context.Context, env budget.Envelope) {
	stats := CallStatsFromContext(ctx)
	if stats == nil {
		return
	}
	stats.Shaped = true
	stats.Level = env.Level
	stats.Exceeded = env.Exceeded
	if env.Stats != nil {
		stats.Tokens = *env.Stats
	}
}
