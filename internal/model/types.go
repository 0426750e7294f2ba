// Package model holds the call-scoped cluster records the analyzers work on
// and the raw cat/REST response shapes they are decoded from.
package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/format"
)

// CatIndexRow is one row of /_cat/indices?format=json. Every value is a string.
type CatIndexRow struct {
	Health       string `json:"health"`
	Status       string `json:"status"`
	Index        string `json:"index"`
	UUID         string `json:"uuid"`
	Pri          string `json:"pri"`
	Rep          string `json:"rep"`
	DocsCount    string `json:"docs.count"`
	StoreSize    string `json:"store.size"`
	PriStoreSize string `json:"pri.store.size"`
	CreationDate string `json:"creation.date"`
}

// CatIndicesColumns is the h= parameter matching CatIndexRow.
const CatIndicesColumns = "health,status,index,uuid,pri,rep,docs.count,store.size,pri.store.size,creation.date"

// IndexRecord is a single index as seen by the analyzers. Read-only.
type IndexRecord struct {
	Name              string    `json:"name"`
	Health            string    `json:"health"`
	Status            string    `json:"status"`
	Primaries         int       `json:"primaries"`
	Replicas          int       `json:"replicas"`
	DocCount          uint64    `json:"doc_count"`
	StoreSizeBytes    uint64    `json:"store_size_bytes"`
	PriStoreSizeBytes uint64    `json:"pri_store_size_bytes"`
	CreationDate      time.Time `json:"creation_date,omitempty"`
}

// Record converts the raw row
func (r CatIndexRow) Record() IndexRecord {
	return IndexRecord{
		Name:              r.Index,
		Health:            strings.ToLower(r.Health),
		Status:            strings.ToLower(r.Status),
		Primaries:         parseInt(r.Pri),
		Replicas:          parseInt(r.Rep),
		DocCount:          parseUint(r.DocsCount),
		StoreSizeBytes:    format.ParseSizeToBytes(r.StoreSize),
		PriStoreSizeBytes: format.ParseSizeToBytes(r.PriStoreSize),
		CreationDate:      parseEpochMillis(r.CreationDate),
	}
}

// CatShardRow is one row of /_cat/shards?format=json
type CatShardRow struct {
	Index            string `json:"index"`
	Shard            string `json:"shard"`
	PriRep           string `json:"prirep"`
	State            string `json:"state"`
	Docs             string `json:"docs"`
	Store            string `json:"store"`
	IP               string `json:"ip"`
	Node             string `json:"node"`
	UnassignedReason string `json:"unassigned.reason"`
}

// CatShardsColumns is the h= parameter matching CatShardRow.
const CatShardsColumns = "index,shard,prirep,state,docs,store,ip,node,unassigned.reason"

// Shard roles
const (
	RolePrimary = "primary"
	RoleReplica = "replica"
)

// Shard states
const (
	StateStarted      = "started"
	StateInitializing = "initializing"
	StateRelocating   = "relocating"
	StateUnassigned   = "unassigned"
)

// ShardRecord is a single shard copy
type ShardRecord struct {
	Index            string `json:"index"`
	ShardID          int    `json:"shard"`
	Role             string `json:"role"`
	State            string `json:"state"`
	DocCount         uint64 `json:"docs"`
	StoreSizeBytes   uint64 `json:"store_bytes"`
	Node             string `json:"node,omitempty"`
	IP               string `json:"ip,omitempty"`
	UnassignedReason string `json:"unassigned_reason,omitempty"`
}

// Record converts the raw row
func (r CatShardRow) Record() ShardRecord {
	role := RoleReplica
	if strings.EqualFold(r.PriRep, "p") || strings.EqualFold(r.PriRep, "primary") {
		role = RolePrimary
	}
	return ShardRecord{
		Index:            r.Index,
		ShardID:          parseInt(r.Shard),
		Role:             role,
		State:            strings.ToLower(r.State),
		DocCount:         parseUint(r.Docs),
		StoreSizeBytes:   format.ParseSizeToBytes(r.Store),
		Node:             r.Node,
		IP:               r.IP,
		UnassignedReason: r.UnassignedReason,
	}
}

// IsPrimary reports whether the shard is a primary copy
func (s ShardRecord) IsPrimary() bool { return s.Role == RolePrimary }

// IsStarted reports whether the shard is started
func (s ShardRecord) IsStarted() bool { return s.State == StateStarted }

// DataStreamsResponse is the body of GET /_data_stream/<name>
type DataStreamsResponse struct {
	DataStreams []DataStreamRow `json:"data_streams"`
}

// DataStreamRow is one raw data stream entry
type DataStreamRow struct {
	Name           string `json:"name"`
	TimestampField struct {
		Name string `json:"name"`
	} `json:"timestamp_field"`
	Indices []struct {
		IndexName string `json:"index_name"`
		IndexUUID string `json:"index_uuid"`
	} `json:"indices"`
	Generation int    `json:"generation"`
	Status     string `json:"status"`
	Template   string `json:"template"`
	ILMPolicy  string `json:"ilm_policy"`
	Hidden     bool   `json:"hidden"`
	System     bool   `json:"system"`
	// Lifecycle is present on 8.11+ when data stream lifecycle is configured
	Lifecycle *DataStreamLifecycle `json:"lifecycle,omitempty"`
}

// DataStreamLifecycle is the built-in data stream lifecycle
type DataStreamLifecycle struct {
	Enabled       *bool  `json:"enabled,omitempty"`
	DataRetention string `json:"data_retention,omitempty"`
}

// Managed reports whether the lifecycle manages the stream. An absent
// enabled flag means enabled.
func (l *DataStreamLifecycle) Managed() bool {
	return l != nil && (l.Enabled == nil || *l.Enabled)
}

// BackingIndex is a backing index with the stats resolved for it. Found is
// false when its stats batch failed; the stats fields are then zero.
type BackingIndex struct {
	Name           string    `json:"name"`
	Health         string    `json:"health,omitempty"`
	Status         string    `json:"status,omitempty"`
	DocCount       uint64    `json:"doc_count"`
	StoreSizeBytes uint64    `json:"store_size_bytes"`
	CreationDate   time.Time `json:"creation_date,omitempty"`
	Found          bool      `json:"-"`
}

// DataStreamRecord is a data stream with its backing indices ordered
// oldest to newest.
type DataStreamRecord struct {
	Name           string         `json:"name"`
	TimestampField string         `json:"timestamp_field"`
	BackingIndices []BackingIndex `json:"backing_indices"`
	Generation     int            `json:"generation"`
	Status         string         `json:"status"`
	ILMPolicy      string         `json:"ilm_policy,omitempty"`
	Template       string         `json:"template,omitempty"`
	Hidden         bool           `json:"hidden,omitempty"`
	System         bool           `json:"system,omitempty"`
	// LifecycleManaged is set when data stream lifecycle replaces ILM
	LifecycleManaged bool `json:"lifecycle_managed,omitempty"`
}

// Current returns the write index, which is the newest backing index.
func (d DataStreamRecord) Current() (BackingIndex, bool) {
	if len(d.BackingIndices) == 0 {
		return BackingIndex{}, false
	}
	return d.BackingIndices[len(d.BackingIndices)-1], true
}

// BackingIndexNames returns the backing index names in stream order
func (r DataStreamRow) BackingIndexNames() []string {
	names := make([]string, len(r.Indices))
	for i, idx := range r.Indices {
		names[i] = idx.IndexName
	}
	return names
}

func parseUint(s string) uint64 {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func parseEpochMillis(s string) time.Time {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// ClusterHealth is the body of GET /_cluster/health
type ClusterHealth struct {
	ClusterName         string  `json:"cluster_name"`
	Status              string  `json:"status"`
	TimedOut            bool    `json:"timed_out"`
	NumberOfNodes       int     `json:"number_of_nodes"`
	NumberOfDataNodes   int     `json:"number_of_data_nodes"`
	ActivePrimaryShards int     `json:"active_primary_shards"`
	ActiveShards        int     `json:"active_shards"`
	RelocatingShards    int     `json:"relocating_shards"`
	InitializingShards  int     `json:"initializing_shards"`
	UnassignedShards    int     `json:"unassigned_shards"`
	PendingTasks        int     `json:"number_of_pending_tasks"`
	ActiveShardsPercent float64 `json:"active_shards_percent_as_number"`
}

// RootInfo is the body of GET / beyond the version block
type RootInfo struct {
	Name        string `json:"name"`
	ClusterName string `json:"cluster_name"`
	ClusterUUID string `json:"cluster_uuid"`
	Tagline     string `json:"tagline"`
}
