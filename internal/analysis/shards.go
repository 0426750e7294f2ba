package analysis

import (
	"fmt"
	"sort"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/format"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/model"
)

// Shard thresholds. The caller thresholds default to DefaultSizeThresholdGB
// and DefaultDocsThresholdM; the others are fixed.
const (
	DefaultSizeThresholdGB = 50.0
	DefaultDocsThresholdM  = 200.0

	SmallShardGB       = 10.0
	OversizedShardGB   = 100.0
	OverShardedMinimum = 5
	OverShardedMeanGB  = 1.0
	HotShardFactor     = 3.0
	NodeOverloadFactor = 1.5
	NodeOverloadShards = 50
	DocsWarningRatio   = 0.75
)

// ShardOptions are the caller thresholds
type ShardOptions struct {
	SizeThresholdGB float64
	DocsThresholdM  float64
}

func (o ShardOptions) withDefaults() ShardOptions {
	if o.SizeThresholdGB <= 0 {
		o.SizeThresholdGB = DefaultSizeThresholdGB
	}
	if o.DocsThresholdM <= 0 {
		o.DocsThresholdM = DefaultDocsThresholdM
	}
	return o
}

// SizeHistogram buckets started primaries by store size
type SizeHistogram struct {
	Small     int `json:"small"`
	Optimal   int `json:"optimal"`
	Large     int `json:"large"`
	Oversized int `json:"oversized"`
}

// DocsHistogram buckets started primaries by document count
type DocsHistogram struct {
	Healthy  int `json:"healthy"`
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
}

// ShardRef identifies a problem shard
type ShardRef struct {
	Index  string  `json:"index"`
	Shard  int     `json:"shard"`
	Role   string  `json:"role"`
	Node   string  `json:"node,omitempty"`
	SizeGB float64 `json:"size_gb,omitempty"`
	Docs   uint64  `json:"docs,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// ProblemShards lists shards needing attention
type ProblemShards struct {
	Unassigned     []ShardRef `json:"unassigned"`
	Large          []ShardRef `json:"large"`
	Oversized      []ShardRef `json:"oversized"`
	OverDocumented []ShardRef `json:"over_documented"`
}

// IndexShardStats is the per-index accumulator over started primaries
type IndexShardStats struct {
	Index       string  `json:"index"`
	ShardCount  int     `json:"shard_count"`
	TotalSizeGB float64 `json:"total_size_gb"`
	MeanSizeGB  float64 `json:"mean_size_gb"`
	MaxDocs     uint64  `json:"max_docs"`
	Replicas    int     `json:"replicas"`
}

// HotShard is a primary much larger than its index mean
type HotShard struct {
	Index       string  `json:"index"`
	Shard       int     `json:"shard"`
	SizeGB      float64 `json:"size_gb"`
	IndexMeanGB float64 `json:"index_mean_gb"`
	Ratio       float64 `json:"ratio"`
}

// NodeLoad is an overloaded node
type NodeLoad struct {
	Node        string  `json:"node"`
	Shards      int     `json:"shards"`
	ClusterMean float64 `json:"cluster_mean"`
}

// ReplicaStrategy classifies indices by replica count
type ReplicaStrategy struct {
	NoReplicas    []string   `json:"no_replicas"`
	SingleReplica int        `json:"single_replica"`
	MultiReplica  int        `json:"multi_replica"`
	Colocated     []ShardRef `json:"colocated"`
}

// Shard health classifications
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// ShardHealth is the shard analyzer result
type ShardHealth struct {
	Options         ShardOptions      `json:"thresholds"`
	Total           int               `json:"total"`
	Primaries       int               `json:"primaries"`
	Replicas        int               `json:"replicas"`
	ByState         map[string]int    `json:"by_state"`
	SizeHistogram   SizeHistogram     `json:"size_histogram"`
	DocsHistogram   DocsHistogram     `json:"docs_health"`
	Problems        ProblemShards     `json:"problem_shards"`
	Indices         []IndexShardStats `json:"indices"`
	OverSharded     []IndexShardStats `json:"over_sharded"`
	HotShards       []HotShard        `json:"hot_shards"`
	OverloadedNodes []NodeLoad        `json:"overloaded_nodes"`
	NodeShards      map[string]int    `json:"node_shards"`
	Replication     ReplicaStrategy   `json:"replica_strategy"`
	Status          string            `json:"status"`
	Recommendations []string          `json:"recommendations"`

	single *model.ShardRecord
}

// AnalyzeShards computes shard health in one pass over shards plus a pass
// over the per-index and per-node accumulators.
func AnalyzeShards(shards []model.ShardRecord, opts ShardOptions) *ShardHealth {
	opts = opts.withDefaults()
	h := &ShardHealth{
		Options:    opts,
		Total:      len(shards),
		ByState:    map[string]int{},
		NodeShards: map[string]int{},
	}
	if len(shards) == 1 {
		s := shards[0]
		h.single = &s
	}

	docsLimit := uint64(opts.DocsThresholdM * 1e6)
	docsWarn := uint64(opts.DocsThresholdM * 1e6 * DocsWarningRatio)

	type indexAcc struct {
		stats    IndexShardStats
		sizes    map[int]uint64
		replicas map[int]int
		primary  map[int]string
		replica  map[int][]string
	}
	byIndex := map[string]*indexAcc{}
	acc := func(name string) *indexAcc {
		a, ok := byIndex[name]
		if !ok {
			a = &indexAcc{
				stats:    IndexShardStats{Index: name},
				sizes:    map[int]uint64{},
				replicas: map[int]int{},
				primary:  map[int]string{},
				replica:  map[int][]string{},
			}
			byIndex[name] = a
		}
		return a
	}

	for _, s := range shards {
		h.ByState[s.State]++
		a := acc(s.Index)
		ref := ShardRef{Index: s.Index, Shard: s.ShardID, Role: s.Role, Node: s.Node, SizeGB: format.ToGB(s.StoreSizeBytes), Docs: s.DocCount}

		if s.IsPrimary() {
			h.Primaries++
		} else {
			h.Replicas++
			a.replicas[s.ShardID]++
		}

		if s.State == model.StateUnassigned {
			ref.Reason = s.UnassignedReason
			h.Problems.Unassigned = append(h.Problems.Unassigned, ref)
			continue
		}
		if !s.IsStarted() {
			continue
		}

		h.NodeShards[s.Node]++
		if s.IsPrimary() {
			a.primary[s.ShardID] = s.Node
		} else {
			a.replica[s.ShardID] = append(a.replica[s.ShardID], s.Node)
			continue
		}

		sizeGB := ref.SizeGB
		a.stats.ShardCount++
		a.stats.TotalSizeGB += sizeGB
		a.sizes[s.ShardID] = s.StoreSizeBytes
		if s.DocCount > a.stats.MaxDocs {
			a.stats.MaxDocs = s.DocCount
		}

		switch {
		case sizeGB > OversizedShardGB:
			h.SizeHistogram.Oversized++
			h.Problems.Oversized = append(h.Problems.Oversized, ref)
		case sizeGB > opts.SizeThresholdGB:
			h.SizeHistogram.Large++
			h.Problems.Large = append(h.Problems.Large, ref)
		case sizeGB < SmallShardGB:
			h.SizeHistogram.Small++
		default:
			h.SizeHistogram.Optimal++
		}

		switch {
		case s.DocCount > docsLimit:
			h.DocsHistogram.Critical++
			h.Problems.OverDocumented = append(h.Problems.OverDocumented, ref)
		case s.DocCount > docsWarn:
			h.DocsHistogram.Warning++
		default:
			h.DocsHistogram.Healthy++
		}
	}

	names := make([]string, 0, len(byIndex))
	for name := range byIndex {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		a := byIndex[name]
		for _, n := range a.replicas {
			if n > a.stats.Replicas {
				a.stats.Replicas = n
			}
		}
		if a.stats.ShardCount > 0 {
			a.stats.MeanSizeGB = a.stats.TotalSizeGB / float64(a.stats.ShardCount)
		}
		h.Indices = append(h.Indices, a.stats)

		if a.stats.ShardCount >= OverShardedMinimum && a.stats.MeanSizeGB < OverShardedMeanGB {
			h.OverSharded = append(h.OverSharded, a.stats)
		}

		if a.stats.ShardCount > 1 && a.stats.MeanSizeGB > 0 {
			ids := make([]int, 0, len(a.sizes))
			for id := range a.sizes {
				ids = append(ids, id)
			}
			sort.Ints(ids)
			for _, id := range ids {
				size := format.ToGB(a.sizes[id])
				if ratio := size / a.stats.MeanSizeGB; ratio > HotShardFactor {
					h.HotShards = append(h.HotShards, HotShard{Index: name, Shard: id, SizeGB: size, IndexMeanGB: a.stats.MeanSizeGB, Ratio: ratio})
				}
			}
		}

		switch {
		case a.stats.Replicas == 0:
			h.Replication.NoReplicas = append(h.Replication.NoReplicas, name)
		case a.stats.Replicas == 1:
			h.Replication.SingleReplica++
		default:
			h.Replication.MultiReplica++
		}

		ids := make([]int, 0, len(a.primary))
		for id := range a.primary {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			pnode := a.primary[id]
			if pnode == "" {
				continue
			}
			for _, rnode := range a.replica[id] {
				if rnode == pnode {
					h.Replication.Colocated = append(h.Replication.Colocated, ShardRef{Index: name, Shard: id, Role: model.RoleReplica, Node: rnode})
				}
			}
		}
	}

	h.detectOverloadedNodes()
	h.classify()
	return h
}

func (h *ShardHealth) detectOverloadedNodes() {
	if len(h.NodeShards) == 0 {
		return
	}
	total := 0
	nodes := make([]string, 0, len(h.NodeShards))
	for node, n := range h.NodeShards {
		total += n
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	mean := float64(total) / float64(len(h.NodeShards))
	for _, node := range nodes {
		n := h.NodeShards[node]
		if float64(n) > mean*NodeOverloadFactor && n > NodeOverloadShards {
			h.OverloadedNodes = append(h.OverloadedNodes, NodeLoad{Node: node, Shards: n, ClusterMean: mean})
		}
	}
}

func (h *ShardHealth) classify() {
	unassignedPrimaries := 0
	for _, s := range h.Problems.Unassigned {
		if s.Role == model.RolePrimary {
			unassignedPrimaries++
		}
	}

	h.Status = HealthHealthy
	warn := func(rec string) {
		if h.Status == HealthHealthy {
			h.Status = HealthWarning
		}
		h.Recommendations = append(h.Recommendations, rec)
	}
	crit := func(rec string) {
		h.Status = HealthCritical
		h.Recommendations = append(h.Recommendations, rec)
	}

	if unassignedPrimaries > 0 {
		crit(fmt.Sprintf("%d unassigned primary shard(s): check allocation with GET _cluster/allocation/explain", unassignedPrimaries))
	}
	if n := len(h.Problems.Oversized); n > 0 {
		crit(fmt.Sprintf("%d shard(s) over %.0fGB: split the index or roll over at a smaller size", n, OversizedShardGB))
	}
	if n := len(h.Problems.Unassigned) - unassignedPrimaries; n > 0 {
		warn(fmt.Sprintf("%d unassigned replica shard(s): add nodes or lower number_of_replicas", n))
	}
	if n := len(h.Problems.Large); n > 0 {
		warn(fmt.Sprintf("%d shard(s) over the %.0fGB threshold: consider more primaries or earlier rollover", n, h.Options.SizeThresholdGB))
	}
	if n := len(h.Problems.OverDocumented); n > 0 {
		warn(fmt.Sprintf("%d shard(s) over %.0fM documents: split or roll over before hitting the per-shard doc limit", n, h.Options.DocsThresholdM))
	}
	if n := len(h.OverSharded); n > 0 {
		warn(fmt.Sprintf("%d over-sharded index(es) (≥%d shards averaging under %.0fGB): shrink or reduce number_of_shards", n, OverShardedMinimum, OverShardedMeanGB))
	}
	if n := len(h.HotShards); n > 0 {
		warn(fmt.Sprintf("%d hot shard(s) over %.0fx their index mean: review routing keys", n, HotShardFactor))
	}
	if n := len(h.OverloadedNodes); n > 0 {
		warn(fmt.Sprintf("%d overloaded node(s): rebalance with cluster.routing.allocation settings", n))
	}
	if n := len(h.Replication.Colocated); n > 0 {
		warn(fmt.Sprintf("%d replica(s) share a node with their primary: enable allocation awareness", n))
	}
	if n := len(h.Replication.NoReplicas); n > 0 {
		warn(fmt.Sprintf("%d index(es) without replicas have no fault tolerance", n))
	}
}
