package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/model"
)

func gib(n float64) uint64 { return uint64(n * 1024 * 1024 * 1024) }

func primary(index string, id int, sizeGB float64, docs uint64, node string) model.ShardRecord {
	return model.ShardRecord{Index: index, ShardID: id, Role: model.RolePrimary, State: model.StateStarted, DocCount: docs, StoreSizeBytes: gib(sizeGB), Node: node}
}

func replica(index string, id int, sizeGB float64, docs uint64, node string) model.ShardRecord {
	r := primary(index, id, sizeGB, docs, node)
	r.Role = model.RoleReplica
	return r
}

func TestAnalyzeShards_OverDocumented(t *testing.T) {
	var shards []model.ShardRecord
	for i := 0; i < 5; i++ {
		shards = append(shards, primary("events", i, 20, 250_000_000, fmt.Sprintf("n%d", i)))
	}

	h := AnalyzeShards(shards, ShardOptions{})

	assert.Len(t, h.Problems.OverDocumented, 5)
	assert.Equal(t, 5, h.DocsHistogram.Critical)
	assert.Equal(t, 5, h.SizeHistogram.Optimal)
	assert.Equal(t, DefaultDocsThresholdM, h.Options.DocsThresholdM)
	assert.Equal(t, HealthWarning, h.Status)
}

func TestAnalyzeShards_Empty(t *testing.T) {
	h := AnalyzeShards(nil, ShardOptions{})

	assert.Equal(t, 0, h.Total)
	assert.Equal(t, SizeHistogram{}, h.SizeHistogram)
	assert.Equal(t, DocsHistogram{}, h.DocsHistogram)
	assert.Empty(t, h.Problems.Unassigned)
	assert.Equal(t, HealthHealthy, h.Status)
	assert.Equal(t, 0, h.Len())
}

func TestAnalyzeShards_ReplicasDoNotCount(t *testing.T) {
	shards := []model.ShardRecord{
		primary("logs", 0, 60, 10, "n1"),
		replica("logs", 0, 60, 10, "n2"),
	}
	h := AnalyzeShards(shards, ShardOptions{})

	assert.Equal(t, 1, h.SizeHistogram.Large)
	assert.Len(t, h.Problems.Large, 1)
	assert.Equal(t, 1, h.Primaries)
	assert.Equal(t, 1, h.Replicas)
	assert.Equal(t, 1, h.Replication.SingleReplica)
}

func TestAnalyzeShards_SizeTiers(t *testing.T) {
	shards := []model.ShardRecord{
		primary("a", 0, 5, 1, "n1"),
		primary("b", 0, 30, 1, "n1"),
		primary("c", 0, 70, 1, "n1"),
		primary("d", 0, 150, 1, "n1"),
	}

	h := AnalyzeShards(shards, ShardOptions{})
	assert.Equal(t, SizeHistogram{Small: 1, Optimal: 1, Large: 1, Oversized: 1}, h.SizeHistogram)
	require.Len(t, h.Problems.Oversized, 1)
	assert.Equal(t, "d", h.Problems.Oversized[0].Index)
	assert.Equal(t, HealthCritical, h.Status)

	// a caller threshold above 100GB leaves the oversized tier fixed
	h = AnalyzeShards(shards, ShardOptions{SizeThresholdGB: 200})
	assert.Equal(t, SizeHistogram{Small: 1, Optimal: 2, Large: 0, Oversized: 1}, h.SizeHistogram)
}

func TestAnalyzeShards_DocsWarningTier(t *testing.T) {
	h := AnalyzeShards([]model.ShardRecord{
		primary("a", 0, 1, 160_000_000, "n1"),
		primary("b", 0, 1, 100_000_000, "n1"),
	}, ShardOptions{})
	assert.Equal(t, DocsHistogram{Healthy: 1, Warning: 1}, h.DocsHistogram)
}

func TestAnalyzeShards_OverShardedAndHot(t *testing.T) {
	var shards []model.ShardRecord
	for i := 0; i < 6; i++ {
		shards = append(shards, primary("tiny", i, 0.1, 100, "n1"))
	}
	for i, size := range []float64{1, 1, 1, 1, 20} {
		shards = append(shards, primary("skewed", i, size, 100, "n2"))
	}

	h := AnalyzeShards(shards, ShardOptions{})

	require.Len(t, h.OverSharded, 1)
	assert.Equal(t, "tiny", h.OverSharded[0].Index)
	assert.Equal(t, 6, h.OverSharded[0].ShardCount)

	require.Len(t, h.HotShards, 1)
	assert.Equal(t, "skewed", h.HotShards[0].Index)
	assert.Equal(t, 4, h.HotShards[0].Shard)
	assert.InDelta(t, 4.8, h.HotShards[0].IndexMeanGB, 0.001)
}

func TestAnalyzeShards_OverloadedNode(t *testing.T) {
	var shards []model.ShardRecord
	for i := 0; i < 60; i++ {
		shards = append(shards, primary(fmt.Sprintf("idx-%d", i), 0, 1, 1, "busy"))
	}
	for i := 0; i < 10; i++ {
		shards = append(shards, primary(fmt.Sprintf("a-%d", i), 0, 1, 1, "quiet-1"))
		shards = append(shards, primary(fmt.Sprintf("b-%d", i), 0, 1, 1, "quiet-2"))
	}

	h := AnalyzeShards(shards, ShardOptions{})
	require.Len(t, h.OverloadedNodes, 1)
	assert.Equal(t, "busy", h.OverloadedNodes[0].Node)
	assert.Equal(t, 60, h.OverloadedNodes[0].Shards)
}

func TestAnalyzeShards_ReplicaStrategyAndColocation(t *testing.T) {
	shards := []model.ShardRecord{
		primary("none", 0, 1, 1, "n1"),
		primary("one", 0, 1, 1, "n1"),
		replica("one", 0, 1, 1, "n1"),
		primary("two", 0, 1, 1, "n1"),
		replica("two", 0, 1, 1, "n2"),
		replica("two", 0, 1, 1, "n3"),
	}

	h := AnalyzeShards(shards, ShardOptions{})
	assert.Equal(t, []string{"none"}, h.Replication.NoReplicas)
	assert.Equal(t, 1, h.Replication.SingleReplica)
	assert.Equal(t, 1, h.Replication.MultiReplica)
	require.Len(t, h.Replication.Colocated, 1)
	assert.Equal(t, "one", h.Replication.Colocated[0].Index)
}

func TestAnalyzeShards_Unassigned(t *testing.T) {
	shards := []model.ShardRecord{
		{Index: "logs", ShardID: 0, Role: model.RolePrimary, State: model.StateUnassigned, UnassignedReason: "NODE_LEFT"},
		{Index: "logs", ShardID: 0, Role: model.RoleReplica, State: model.StateUnassigned},
		{Index: "other", ShardID: 0, Role: model.RolePrimary, State: model.StateInitializing, Node: "n1"},
	}
	h := AnalyzeShards(shards, ShardOptions{})

	assert.Len(t, h.Problems.Unassigned, 2)
	assert.Equal(t, map[string]int{model.StateUnassigned: 2, model.StateInitializing: 1}, h.ByState)
	assert.Equal(t, HealthCritical, h.Status)
	assert.Contains(t, h.Recommendations[0], "1 unassigned primary")
}

func TestShardHealth_Renderings(t *testing.T) {
	var shards []model.ShardRecord
	for i := 0; i < 30; i++ {
		shards = append(shards, primary(fmt.Sprintf("big-%02d", i), 0, 120, 1, "n1"))
	}
	h := AnalyzeShards(shards, ShardOptions{})

	full := h.Render(budget.LevelFull)
	compact := h.Render(budget.LevelCompact)
	minimal := h.Render(budget.LevelMinimal)

	assert.Contains(t, full, "Oversized (30):")
	assert.Contains(t, full, "Largest indices (primaries):")
	assert.Contains(t, compact, "- … (+20 more)")
	assert.NotContains(t, compact, "Largest indices")
	assert.Contains(t, minimal, "oversized 30")
	assert.Less(t, len(minimal), len(compact))
	assert.Less(t, len(compact), len(full))
}

func TestShardHealth_Detail(t *testing.T) {
	h := AnalyzeShards([]model.ShardRecord{primary("logs", 2, 1, 42, "n1")}, ShardOptions{})
	require.Equal(t, 1, h.Len())
	assert.Contains(t, h.Detail(), "Shard: logs[2] primary")
}
