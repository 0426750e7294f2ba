package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/format"
)

const (
	fullProblemLimit    = 50
	compactProblemLimit = 10
	fullIndexLimit      = 20
)

func (h *ShardHealth) Kind() string           { return "shards" }
func (h *ShardHealth) Len() int               { return h.Total }
func (h *ShardHealth) Ladder() []budget.Level { return budget.StandardLadder }

func (h *ShardHealth) Render(level budget.Level) string {
	switch level {
	case budget.LevelMinimal:
		return h.renderMinimal()
	case budget.LevelCompact:
		return h.render(compactProblemLimit, false)
	default:
		return h.render(fullProblemLimit, true)
	}
}

// Detail renders the only shard
func (h *ShardHealth) Detail() string {
	if h.single == nil {
		return ""
	}
	s := h.single
	var b strings.Builder
	fmt.Fprintf(&b, "Shard: %s[%d] %s\n", s.Index, s.ShardID, s.Role)
	fmt.Fprintf(&b, "State: %s\n", label(s.State))
	if s.Node != "" {
		fmt.Fprintf(&b, "Node: %s (%s)\n", s.Node, s.IP)
	}
	fmt.Fprintf(&b, "Documents: %s\n", format.Number(s.DocCount))
	fmt.Fprintf(&b, "Size: %s\n", format.Bytes(s.StoreSizeBytes))
	if s.UnassignedReason != "" {
		fmt.Fprintf(&b, "Unassigned reason: %s\n", s.UnassignedReason)
	}
	fmt.Fprintf(&b, "Status: %s\n", label(h.Status))
	for _, r := range h.Recommendations {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	return b.String()
}

func (h *ShardHealth) header(b *strings.Builder) {
	fmt.Fprintf(b, "Shard health: %s\n", label(h.Status))
	fmt.Fprintf(b, "Shards: %d (%d primary, %d replica) across %d indices and %d nodes\n",
		h.Total, h.Primaries, h.Replicas, len(h.Indices), len(h.NodeShards))
	fmt.Fprintf(b, "States: %s\n", countLine(h.ByState))
	fmt.Fprintf(b, "Primary sizes: small %d · optimal %d · large %d · oversized %d (threshold %.0fGB)\n",
		h.SizeHistogram.Small, h.SizeHistogram.Optimal, h.SizeHistogram.Large, h.SizeHistogram.Oversized, h.Options.SizeThresholdGB)
	fmt.Fprintf(b, "Primary docs: healthy %d · warning %d · critical %d (threshold %.0fM)\n",
		h.DocsHistogram.Healthy, h.DocsHistogram.Warning, h.DocsHistogram.Critical, h.Options.DocsThresholdM)
}

func (h *ShardHealth) render(limit int, full bool) string {
	var b strings.Builder
	h.header(&b)

	writeRefs(&b, "Unassigned", h.Problems.Unassigned, limit)
	writeRefs(&b, "Oversized", h.Problems.Oversized, limit)
	writeRefs(&b, "Large", h.Problems.Large, limit)
	writeRefs(&b, "Over-documented", h.Problems.OverDocumented, limit)

	if len(h.OverSharded) > 0 {
		fmt.Fprintf(&b, "\nOver-sharded (%d):\n", len(h.OverSharded))
		for i, s := range h.OverSharded {
			if i == limit {
				fmt.Fprintf(&b, "- … (+%d more)\n", len(h.OverSharded)-limit)
				break
			}
			fmt.Fprintf(&b, "- %s: %d shards, mean %.2fGB\n", s.Index, s.ShardCount, s.MeanSizeGB)
		}
	}
	if len(h.HotShards) > 0 {
		fmt.Fprintf(&b, "\nHot shards (%d):\n", len(h.HotShards))
		for i, s := range h.HotShards {
			if i == limit {
				fmt.Fprintf(&b, "- … (+%d more)\n", len(h.HotShards)-limit)
				break
			}
			fmt.Fprintf(&b, "- %s[%d]: %.2fGB, %.1fx index mean %.2fGB\n", s.Index, s.Shard, s.SizeGB, s.Ratio, s.IndexMeanGB)
		}
	}
	if len(h.OverloadedNodes) > 0 {
		fmt.Fprintf(&b, "\nOverloaded nodes (%d):\n", len(h.OverloadedNodes))
		for _, n := range h.OverloadedNodes {
			fmt.Fprintf(&b, "- %s: %d shards (cluster mean %.1f)\n", n.Node, n.Shards, n.ClusterMean)
		}
	}

	r := h.Replication
	fmt.Fprintf(&b, "\nReplicas: none %d · one %d · two or more %d\n", len(r.NoReplicas), r.SingleReplica, r.MultiReplica)
	if len(r.NoReplicas) > 0 {
		fmt.Fprintf(&b, "Without replicas: %s\n", nameList(r.NoReplicas, limit))
	}
	writeRefs(&b, "Co-located with primary", r.Colocated, limit)

	if full && len(h.Indices) > 0 {
		indices := append([]IndexShardStats(nil), h.Indices...)
		sort.SliceStable(indices, func(i, j int) bool { return indices[i].TotalSizeGB > indices[j].TotalSizeGB })
		if len(indices) > fullIndexLimit {
			indices = indices[:fullIndexLimit]
		}
		b.WriteString("\nLargest indices (primaries):\n")
		for _, s := range indices {
			fmt.Fprintf(&b, "- %s: %d shards, %.2fGB, max docs %s, %d replica(s)\n",
				s.Index, s.ShardCount, s.TotalSizeGB, format.Number(s.MaxDocs), s.Replicas)
		}
	}

	if len(h.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, rec := range h.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}
	return b.String()
}

func (h *ShardHealth) renderMinimal() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Shards: %d · %s · %s\n", h.Total, label(h.Status), countLine(h.ByState))
	fmt.Fprintf(&b, "Problems: unassigned %d · oversized %d · large %d · over-documented %d · over-sharded %d · hot %d · overloaded nodes %d\n",
		len(h.Problems.Unassigned), len(h.Problems.Oversized), len(h.Problems.Large), len(h.Problems.OverDocumented),
		len(h.OverSharded), len(h.HotShards), len(h.OverloadedNodes))
	for i, rec := range h.Recommendations {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "- %s\n", rec)
	}
	return b.String()
}

func writeRefs(b *strings.Builder, title string, refs []ShardRef, limit int) {
	if len(refs) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s (%d):\n", title, len(refs))
	for i, r := range refs {
		if i == limit {
			fmt.Fprintf(b, "- … (+%d more)\n", len(refs)-limit)
			break
		}
		line := fmt.Sprintf("- %s[%d] %s", r.Index, r.Shard, r.Role)
		if r.Node != "" {
			line += " on " + r.Node
		}
		if r.SizeGB > 0 {
			line += fmt.Sprintf(", %.2fGB", r.SizeGB)
		}
		if r.Docs > 0 {
			line += ", docs " + format.Number(r.Docs)
		}
		if r.Reason != "" {
			line += " (" + r.Reason + ")"
		}
		b.WriteString(line + "\n")
	}
}
